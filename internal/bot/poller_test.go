package bot

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/antoniostano/gembot/internal/gemini"
	"github.com/antoniostano/gembot/internal/history"
	"github.com/antoniostano/gembot/internal/prompt"
	"github.com/antoniostano/gembot/internal/ratelimit"
	"github.com/antoniostano/gembot/internal/telegram"
)

// scriptedSource hands out the prepared batches once each, then blocks
// like a real long poll until the context is cancelled.
type scriptedSource struct {
	mu      sync.Mutex
	batches [][]telegram.Update
}

func (s *scriptedSource) GetUpdates(ctx context.Context, _ int64, _ int) ([]telegram.Update, error) {
	s.mu.Lock()
	if len(s.batches) > 0 {
		batch := s.batches[0]
		s.batches = s.batches[1:]
		s.mu.Unlock()
		return batch, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

// orderedBrain records the current-message part of every call. Workers run
// concurrently across users, so access is locked.
type orderedBrain struct {
	mu   sync.Mutex
	seen []string
}

func (b *orderedBrain) Generate(_ context.Context, parts []gemini.Part) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seen = append(b.seen, parts[len(parts)-1].Text)
	return "ок", nil
}

func (b *orderedBrain) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.seen)
}

func (b *orderedBrain) snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.seen...)
}

// quietAPI swallows outgoing traffic; dispatch runs a worker per user, so
// it needs its own lock too.
type quietAPI struct {
	mu       sync.Mutex
	messages []string
}

func (a *quietAPI) SendMessage(_ context.Context, _ int64, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, text)
	return nil
}

func (a *quietAPI) SendChatAction(context.Context, int64, string) error { return nil }

func (a *quietAPI) SendVoice(context.Context, int64, []byte, string) error { return nil }

func (a *quietAPI) DownloadFile(context.Context, string) ([]byte, error) {
	return nil, fmt.Errorf("no files in this test")
}

func newPollerHandler(brain gemini.Generator) *Handler {
	return NewHandler(HandlerOptions{
		API:      &quietAPI{},
		Brain:    brain,
		Store:    history.NewInMemoryStore(50),
		Limits:   ratelimit.NewRegistry(ratelimit.Quota{Minute: 100, Day: 1000}),
		Augment:  &fakeAugmenter{},
		Composer: prompt.NewComposer(10),
		Metrics:  testMetrics,
		Prefs:    NewVoicePrefs(false, ""),
	})
}

func pollerUpdate(updateID, userID int64, text string) telegram.Update {
	upd := textUpdate(userID, text)
	upd.UpdateID = updateID
	return upd
}

func waitForCalls(t *testing.T, brain *orderedBrain, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for brain.calls() < want {
		if time.Now().After(deadline) {
			t.Fatalf("processed %d of %d updates before timeout", brain.calls(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPollerKeepsSameUserArrivalOrder(t *testing.T) {
	const total = 12

	var want []string
	var first, second []telegram.Update
	for i := 0; i < total; i++ {
		text := fmt.Sprintf("сообщение %02d", i)
		want = append(want, text)
		upd := pollerUpdate(int64(i+1), 7, text)
		if i < total/2 {
			first = append(first, upd)
		} else {
			second = append(second, upd)
		}
	}

	brain := &orderedBrain{}
	source := &scriptedSource{batches: [][]telegram.Update{first, second}}
	poller := NewPoller(source, newPollerHandler(brain), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	waitForCalls(t, brain, total)
	cancel()
	<-done

	got := brain.snapshot()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("message %d processed as %q, want %q (full order %v)", i, got[i], want[i], got)
		}
	}
}

func TestPollerHandlesDistinctUsers(t *testing.T) {
	brain := &orderedBrain{}
	source := &scriptedSource{batches: [][]telegram.Update{{
		pollerUpdate(1, 1, "вопрос первого"),
		pollerUpdate(2, 2, "вопрос второго"),
	}}}
	poller := NewPoller(source, newPollerHandler(brain), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	waitForCalls(t, brain, 2)
	cancel()
	<-done

	seen := map[string]bool{}
	for _, text := range brain.snapshot() {
		seen[text] = true
	}
	if !seen["вопрос первого"] || !seen["вопрос второго"] {
		t.Fatalf("processed = %v, want both users' messages", brain.snapshot())
	}
}
