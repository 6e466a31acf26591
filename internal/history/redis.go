package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const historyKeyPrefix = "history:"

// RedisStore keeps per-user history in a Redis list, trimmed to the turn cap
// on every append. Keys carry a TTL refreshed on writes, so idle histories
// age out on the server without an explicit sweep.
type RedisStore struct {
	client *redis.Client
	cap    int
	ttl    time.Duration
}

func NewRedisStore(redisURL string, turnCap int, idleTTL time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if turnCap <= 0 {
		turnCap = 50
	}
	if idleTTL <= 0 {
		idleTTL = 24 * time.Hour
	}
	return &RedisStore{
		client: redis.NewClient(opts),
		cap:    turnCap,
		ttl:    idleTTL,
	}, nil
}

func (s *RedisStore) Append(ctx context.Context, userID int64, turn Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	val, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}

	key := s.key(userID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, val)
	pipe.LTrim(ctx, key, int64(-s.cap), -1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, userID int64) ([]Turn, error) {
	vals, err := s.client.LRange(ctx, s.key(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	out := make([]Turn, 0, len(vals))
	for _, v := range vals {
		var turn Turn
		if err := json.Unmarshal([]byte(v), &turn); err != nil {
			continue
		}
		out = append(out, turn)
	}
	return out, nil
}

func (s *RedisStore) Clear(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, s.key(userID)).Err()
}

// PurgeIdle is a no-op: key TTLs already expire idle histories server-side.
func (s *RedisStore) PurgeIdle(context.Context, time.Duration) error { return nil }

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) key(userID int64) string {
	return fmt.Sprintf("%s%d", historyKeyPrefix, userID)
}
