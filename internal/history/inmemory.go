package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is the default in-process history store. State is lost on
// restart; callers treat that as acceptable default behavior.
type InMemoryStore struct {
	mu      sync.RWMutex
	cap     int
	records map[int64][]Turn
}

func NewInMemoryStore(turnCap int) *InMemoryStore {
	if turnCap <= 0 {
		turnCap = 50
	}
	return &InMemoryStore{
		cap:     turnCap,
		records: make(map[int64][]Turn),
	}
}

func (s *InMemoryStore) Append(_ context.Context, userID int64, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	arr := s.records[userID]
	if len(arr) >= s.cap {
		// FIFO eviction: shift out the oldest turn.
		copy(arr, arr[len(arr)-s.cap+1:])
		arr = arr[:s.cap-1]
	}
	s.records[userID] = append(arr, turn)
	return nil
}

func (s *InMemoryStore) History(_ context.Context, userID int64) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.records[userID]
	if len(arr) == 0 {
		return nil, nil
	}
	out := make([]Turn, len(arr))
	copy(out, arr)
	return out, nil
}

func (s *InMemoryStore) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
	return nil
}

func (s *InMemoryStore) PurgeIdle(_ context.Context, olderThan time.Duration) error {
	cutoff := time.Now().UTC().Add(-olderThan)
	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, arr := range s.records {
		if len(arr) == 0 || arr[len(arr)-1].CreatedAt.Before(cutoff) {
			delete(s.records, userID)
		}
	}
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
