package ratelimit

import (
	"testing"
	"time"
)

func newTestRegistry(quota Quota) (*Registry, *time.Time) {
	r := NewRegistry(quota)
	current := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return current }
	return r, &current
}

func TestRemainingDecrementsPerRecord(t *testing.T) {
	r, _ := newTestRegistry(Quota{Minute: 5, Day: 100})

	for i := 0; i < 5; i++ {
		gotMinute, _ := r.Remaining(7)
		if gotMinute != 5-i {
			t.Fatalf("remaining minute before record %d = %d, want %d", i, gotMinute, 5-i)
		}
		r.Record(7)
	}

	gotMinute, gotDay := r.Remaining(7)
	if gotMinute != 0 {
		t.Fatalf("remaining minute after 5 records = %d, want 0", gotMinute)
	}
	if gotDay != 95 {
		t.Fatalf("remaining day = %d, want 95", gotDay)
	}
}

func TestWindowExpiryRestoresQuota(t *testing.T) {
	r, clock := newTestRegistry(Quota{Minute: 10, Day: 250})

	for i := 0; i < 10; i++ {
		r.Record(1)
	}
	if r.CanAdmit(1) {
		t.Fatalf("CanAdmit after exhausting minute window = true, want false")
	}

	*clock = clock.Add(61 * time.Second)
	gotMinute, gotDay := r.Remaining(1)
	if gotMinute != 10 {
		t.Fatalf("remaining minute after window elapsed = %d, want 10", gotMinute)
	}
	if gotDay != 240 {
		t.Fatalf("remaining day = %d, want 240 (day window still counting)", gotDay)
	}
	if !r.CanAdmit(1) {
		t.Fatalf("CanAdmit after minute window elapsed = false, want true")
	}

	*clock = clock.Add(25 * time.Hour)
	if _, gotDay = r.Remaining(1); gotDay != 250 {
		t.Fatalf("remaining day after day window elapsed = %d, want 250", gotDay)
	}
}

func TestCanAdmitMatchesRemaining(t *testing.T) {
	r, clock := newTestRegistry(Quota{Minute: 2, Day: 3})

	steps := []func(){
		func() { r.Record(9) },
		func() { r.Record(9) },
		func() { *clock = clock.Add(2 * time.Minute) },
		func() { r.Record(9) },
		func() { *clock = clock.Add(2 * time.Minute) },
	}

	check := func(step int) {
		gotMinute, gotDay := r.Remaining(9)
		want := gotMinute > 0 && gotDay > 0
		if got := r.CanAdmit(9); got != want {
			t.Fatalf("step %d: CanAdmit = %v, want %v (remaining %d/%d)", step, got, want, gotMinute, gotDay)
		}
	}

	check(0)
	for i, step := range steps {
		step()
		check(i + 1)
	}

	// Day window exhausted: minute alone being free must not admit.
	gotMinute, gotDay := r.Remaining(9)
	if gotMinute != 2 || gotDay != 0 {
		t.Fatalf("remaining = %d/%d, want 2/0", gotMinute, gotDay)
	}
	if r.CanAdmit(9) {
		t.Fatalf("CanAdmit with exhausted day window = true, want false")
	}
}

func TestUsersAreIsolated(t *testing.T) {
	r, _ := newTestRegistry(Quota{Minute: 1, Day: 10})

	r.Record(1)
	if r.CanAdmit(1) {
		t.Fatalf("user 1 should be out of minute budget")
	}
	if !r.CanAdmit(2) {
		t.Fatalf("user 2 must not be affected by user 1's records")
	}
	if r.TrackedUsers() != 2 {
		t.Fatalf("TrackedUsers = %d, want 2", r.TrackedUsers())
	}
}

func TestEndToEndMinuteScenario(t *testing.T) {
	r, clock := newTestRegistry(Quota{Minute: 10, Day: 250})

	for i := 0; i < 10; i++ {
		if !r.CanAdmit(42) {
			t.Fatalf("request %d unexpectedly rejected", i+1)
		}
		r.Record(42)
		*clock = clock.Add(time.Second)
	}

	// 11th message within the same minute.
	if r.CanAdmit(42) {
		t.Fatalf("11th request admitted, want rejection")
	}
	gotMinute, gotDay := r.Remaining(42)
	if gotMinute != 0 {
		t.Fatalf("remaining minute = %d, want 0", gotMinute)
	}
	if gotDay == 0 {
		t.Fatalf("remaining day = 0, want non-zero")
	}

	*clock = clock.Add(61 * time.Second)
	if !r.CanAdmit(42) {
		t.Fatalf("request after 61s clock advance rejected, want admitted")
	}
}
