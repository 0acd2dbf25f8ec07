package tracker

import (
	"sync"
	"time"

	"parking-status-backend/internal/model"
)

// UsageCounter counts, per slot, how many times a slot went from free to
// occupied during the current local day.
type UsageCounter struct {
	loc *time.Location

	mu     sync.Mutex
	day    time.Time
	counts map[int]int
}

// NewUsageCounter creates a counter whose day boundary is midnight in loc.
func NewUsageCounter(loc *time.Location) *UsageCounter {
	return &UsageCounter{loc: loc, counts: make(map[int]int)}
}

// Replay rebuilds today's counts from records, which must be chronological.
func (u *UsageCounter) Replay(records []model.OccupationRecord) {
	u.mu.Lock()
	u.day = time.Time{}
	u.counts = make(map[int]int)
	u.mu.Unlock()

	for _, rec := range records {
		u.OnTransition(rec)
	}
}

// OnTransition counts free-to-occupied transitions.
func (u *UsageCounter) OnTransition(rec model.OccupationRecord) {
	if rec.Previous != model.SlotFree || rec.Next != model.SlotOccupied {
		return
	}
	day := model.StartOfDay(rec.At, u.loc)

	u.mu.Lock()
	defer u.mu.Unlock()
	if day.Before(u.day) {
		return
	}
	if !day.Equal(u.day) {
		u.day = day
		u.counts = make(map[int]int)
	}
	u.counts[rec.Slot]++
}

// Today returns the per-slot counts for now's day.
func (u *UsageCounter) Today(now time.Time) map[int]int {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make(map[int]int, len(u.counts))
	if !model.StartOfDay(now, u.loc).Equal(u.day) {
		return out
	}
	for slot, n := range u.counts {
		out[slot] = n
	}
	return out
}
