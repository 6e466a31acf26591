package bot

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/antoniostano/gembot/internal/reliability"
	"github.com/antoniostano/gembot/internal/telegram"
)

// UpdateSource is the long-poll side of the Telegram client.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout int) ([]telegram.Update, error)
}

// userQueueDepth bounds how many updates one user can have pending before
// the poll loop blocks on that user.
const userQueueDepth = 32

// Poller pulls updates and hands each one to a per-user worker, so one
// user's messages are handled in the order they arrived while different
// users run concurrently.
type Poller struct {
	source      UpdateSource
	handler     *Handler
	pollTimeout int

	mu      sync.Mutex
	queues  map[int64]chan telegram.Update
	workers sync.WaitGroup
}

func NewPoller(source UpdateSource, handler *Handler, pollTimeout time.Duration) *Poller {
	seconds := int(pollTimeout / time.Second)
	if seconds <= 0 {
		seconds = 30
	}
	return &Poller{
		source:      source,
		handler:     handler,
		pollTimeout: seconds,
		queues:      make(map[int64]chan telegram.Update),
	}
}

// Run blocks until ctx is cancelled, waiting for in-flight updates to
// finish before returning.
func (p *Poller) Run(ctx context.Context) {
	var (
		offset  int64
		attempt int
	)
	defer p.workers.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := p.source.GetUpdates(ctx, offset, p.pollTimeout)
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return
			}
			attempt++
			delay := reliability.ExponentialBackoff(attempt, time.Second, 30*time.Second)
			log.Printf("getUpdates failed (attempt %d), retrying in %s: %v", attempt, delay, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		attempt = 0

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			p.dispatch(ctx, upd)
		}
	}
}

// dispatch enqueues the update on its sender's queue, starting a worker
// for that sender on first sight. Queue sends and worker receives keep
// one sender's updates strictly in batch order.
func (p *Poller) dispatch(ctx context.Context, upd telegram.Update) {
	userID := updateSender(upd)
	if userID == 0 {
		p.handler.HandleUpdate(ctx, upd)
		return
	}

	p.mu.Lock()
	queue, ok := p.queues[userID]
	if !ok {
		queue = make(chan telegram.Update, userQueueDepth)
		p.queues[userID] = queue
		p.workers.Add(1)
		go p.runWorker(ctx, queue)
	}
	p.mu.Unlock()

	select {
	case <-ctx.Done():
	case queue <- upd:
	}
}

func (p *Poller) runWorker(ctx context.Context, queue <-chan telegram.Update) {
	defer p.workers.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case upd := <-queue:
			p.handler.HandleUpdate(ctx, upd)
		}
	}
}

func updateSender(upd telegram.Update) int64 {
	if upd.Message == nil || upd.Message.From == nil {
		return 0
	}
	return upd.Message.From.ID
}
