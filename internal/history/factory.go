package history

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Options selects and configures a history driver.
type Options struct {
	Driver      string // memory|redis|postgres
	RedisURL    string
	DatabaseURL string
	TurnCap     int
	IdleTTL     time.Duration
}

// NewStore builds the configured history store, defaulting to in-memory.
func NewStore(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", "memory":
		return NewInMemoryStore(opts.TurnCap), nil
	case "redis":
		if opts.RedisURL == "" {
			return nil, fmt.Errorf("redis history store requires REDIS_URL")
		}
		return NewRedisStore(opts.RedisURL, opts.TurnCap, opts.IdleTTL)
	case "postgres":
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres history store requires DATABASE_URL")
		}
		return NewPostgresStore(ctx, opts.DatabaseURL, opts.TurnCap)
	default:
		return nil, fmt.Errorf("unsupported history driver %q", opts.Driver)
	}
}

// StartJanitor periodically removes histories idle for longer than olderThan.
func StartJanitor(ctx context.Context, store Store, interval, olderThan time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := store.PurgeIdle(ctx, olderThan); err != nil {
					log.Printf("history janitor sweep failed: %v", err)
				}
			}
		}
	}()
}
