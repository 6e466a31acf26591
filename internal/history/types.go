package history

import (
	"context"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn stores a single user or assistant conversational turn.
type Turn struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store keeps a bounded per-user conversation history. Every driver enforces
// the same FIFO cap: once a user holds cap turns, the oldest is evicted
// before a new one is appended.
type Store interface {
	Append(ctx context.Context, userID int64, turn Turn) error
	History(ctx context.Context, userID int64) ([]Turn, error)
	Clear(ctx context.Context, userID int64) error
	PurgeIdle(ctx context.Context, olderThan time.Duration) error
	Close() error
}
