package ratelimit

import (
	"sync"
	"time"
)

const (
	minuteWindow = time.Minute
	dayWindow    = 24 * time.Hour
)

// Quota holds the per-user request ceilings for both rolling windows.
type Quota struct {
	Minute int
	Day    int
}

// Registry tracks per-user request timestamps in rolling minute and day
// windows. All state is in-memory; a restart resets every counter, which is
// the accepted behavior for this service.
type Registry struct {
	mu      sync.Mutex
	quota   Quota
	windows map[int64]*userWindows
	now     func() time.Time
}

type userWindows struct {
	minute []time.Time
	day    []time.Time
}

func NewRegistry(quota Quota) *Registry {
	if quota.Minute <= 0 {
		quota.Minute = 10
	}
	if quota.Day <= 0 {
		quota.Day = 250
	}
	return &Registry{
		quota:   quota,
		windows: make(map[int64]*userWindows),
		now:     time.Now,
	}
}

// Quota returns the configured ceilings.
func (r *Registry) Quota() Quota {
	return r.quota
}

// Remaining purges expired records for the user and returns how many
// requests are left in the minute and day windows.
func (r *Registry) Remaining(userID int64) (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.purgeLocked(userID)

	remainingMinute := r.quota.Minute - len(w.minute)
	if remainingMinute < 0 {
		remainingMinute = 0
	}
	remainingDay := r.quota.Day - len(w.day)
	if remainingDay < 0 {
		remainingDay = 0
	}
	return remainingMinute, remainingDay
}

// CanAdmit reports whether the user has budget left in both windows. Callers
// must check this before doing any expensive downstream work.
func (r *Registry) CanAdmit(userID int64) bool {
	remainingMinute, remainingDay := r.Remaining(userID)
	return remainingMinute > 0 && remainingDay > 0
}

// Record consumes one unit of budget in both windows. It must be called once
// per request, and only after the downstream model call succeeded, so that
// upstream outages do not burn user quota.
func (r *Registry) Record(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.purgeLocked(userID)
	now := r.now()
	w.minute = append(w.minute, now)
	w.day = append(w.day, now)
}

// TrackedUsers returns how many users currently hold any window state.
func (r *Registry) TrackedUsers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.windows)
}

func (r *Registry) purgeLocked(userID int64) *userWindows {
	w, ok := r.windows[userID]
	if !ok {
		w = &userWindows{}
		r.windows[userID] = w
	}
	now := r.now()
	w.minute = dropExpired(w.minute, now.Add(-minuteWindow))
	w.day = dropExpired(w.day, now.Add(-dayWindow))
	return w
}

// dropExpired keeps only timestamps strictly newer than cutoff. Records are
// appended in order, so the slice stays sorted and one scan suffices.
func dropExpired(records []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(records) && !records[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return records
	}
	return append(records[:0], records[idx:]...)
}
