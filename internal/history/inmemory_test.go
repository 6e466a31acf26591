package history

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestAppendEnforcesCapInOrder(t *testing.T) {
	s := NewInMemoryStore(50)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		err := s.Append(ctx, 1, Turn{Role: RoleUser, Content: fmt.Sprintf("msg-%d", i)})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := s.History(ctx, 1)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got) != 50 {
		t.Fatalf("history length = %d, want 50", len(got))
	}
	// The first 10 turns must be gone, the remaining 50 in append order.
	for i, turn := range got {
		want := fmt.Sprintf("msg-%d", i+10)
		if turn.Content != want {
			t.Fatalf("turn %d content = %q, want %q", i, turn.Content, want)
		}
	}
}

func TestHistoryIsSnapshot(t *testing.T) {
	s := NewInMemoryStore(10)
	ctx := context.Background()

	if err := s.Append(ctx, 1, Turn{Role: RoleUser, Content: "a"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	got, err := s.History(ctx, 1)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	got[0].Content = "mutated"

	again, err := s.History(ctx, 1)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if again[0].Content != "a" {
		t.Fatalf("store content = %q after caller mutation, want %q", again[0].Content, "a")
	}
}

func TestClearEmptiesOnlyThatUser(t *testing.T) {
	s := NewInMemoryStore(10)
	ctx := context.Background()

	_ = s.Append(ctx, 1, Turn{Role: RoleUser, Content: "one"})
	_ = s.Append(ctx, 2, Turn{Role: RoleUser, Content: "two"})

	if err := s.Clear(ctx, 1); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	got, _ := s.History(ctx, 1)
	if len(got) != 0 {
		t.Fatalf("user 1 history length = %d after clear, want 0", len(got))
	}
	got, _ = s.History(ctx, 2)
	if len(got) != 1 {
		t.Fatalf("user 2 history length = %d, want 1", len(got))
	}
}

func TestPurgeIdleDropsStaleHistories(t *testing.T) {
	s := NewInMemoryStore(10)
	ctx := context.Background()

	stale := Turn{Role: RoleUser, Content: "old", CreatedAt: time.Now().UTC().Add(-48 * time.Hour)}
	fresh := Turn{Role: RoleUser, Content: "new"}
	_ = s.Append(ctx, 1, stale)
	_ = s.Append(ctx, 2, fresh)

	if err := s.PurgeIdle(ctx, 24*time.Hour); err != nil {
		t.Fatalf("PurgeIdle() error = %v", err)
	}

	got, _ := s.History(ctx, 1)
	if len(got) != 0 {
		t.Fatalf("stale history survived purge: %d turns", len(got))
	}
	got, _ = s.History(ctx, 2)
	if len(got) != 1 {
		t.Fatalf("fresh history purged: %d turns, want 1", len(got))
	}
}

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	s := NewInMemoryStore(10)
	ctx := context.Background()

	_ = s.Append(ctx, 1, Turn{Role: RoleAssistant, Content: "hi"})
	got, _ := s.History(ctx, 1)
	if got[0].ID == "" {
		t.Fatalf("turn ID should not be empty")
	}
	if got[0].CreatedAt.IsZero() {
		t.Fatalf("turn CreatedAt should be set")
	}
}
