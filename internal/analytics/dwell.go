// Package analytics derives dwell time and peak hour figures from the
// occupation and access logs.
package analytics

import (
	"sort"
	"sync"
	"time"

	"parking-status-backend/internal/metrics"
	"parking-status-backend/internal/model"
)

const (
	DefaultMinDwell = 5 * time.Second
	DefaultWindow   = 30
)

// DwellAnalyzer pairs occupied/free transitions per slot into completed
// occupation durations and keeps the most recent ones for averaging.
type DwellAnalyzer struct {
	minDuration time.Duration
	window      int
	metrics     *metrics.Metrics

	mu        sync.Mutex
	since     map[int]time.Time
	durations []time.Duration
}

// NewDwellAnalyzer creates an analyzer. Non-positive arguments fall back to the defaults.
func NewDwellAnalyzer(minDuration time.Duration, window int, m *metrics.Metrics) *DwellAnalyzer {
	if minDuration <= 0 {
		minDuration = DefaultMinDwell
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &DwellAnalyzer{
		minDuration: minDuration,
		window:      window,
		metrics:     m,
		since:       make(map[int]time.Time),
	}
}

// Replay discards the current state and rebuilds it from records. The
// result depends only on the records, so replaying the same log twice
// yields the same queue.
func (a *DwellAnalyzer) Replay(records []model.OccupationRecord) {
	ordered := make([]model.OccupationRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].At.Before(ordered[j].At) })

	a.mu.Lock()
	defer a.mu.Unlock()
	a.since = make(map[int]time.Time)
	a.durations = nil
	for _, rec := range ordered {
		a.apply(rec, false)
	}
}

// OnTransition feeds one live transition into the analyzer.
func (a *DwellAnalyzer) OnTransition(rec model.OccupationRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.apply(rec, true)
}

// apply advances the pairing state by one record. Caller holds mu.
func (a *DwellAnalyzer) apply(rec model.OccupationRecord, live bool) {
	switch {
	case rec.Next == model.SlotOccupied && rec.Previous != model.SlotOccupied:
		a.since[rec.Slot] = rec.At
	case rec.Previous == model.SlotOccupied && rec.Next == model.SlotFree:
		start, ok := a.since[rec.Slot]
		if !ok {
			return
		}
		delete(a.since, rec.Slot)
		d := rec.At.Sub(start)
		if d < a.minDuration {
			return
		}
		a.durations = append(a.durations, d)
		if len(a.durations) > a.window {
			a.durations = a.durations[len(a.durations)-a.window:]
		}
		if live {
			a.metrics.ObserveDwell(d.Seconds())
		}
	case rec.Previous == model.SlotOccupied:
		// Leaving occupied for blocked ends the occupation without a duration.
		delete(a.since, rec.Slot)
	}
}

// Average returns the mean of the retained durations, or false when none are retained.
func (a *DwellAnalyzer) Average() (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.durations) == 0 {
		return 0, false
	}
	var total time.Duration
	for _, d := range a.durations {
		total += d
	}
	return total / time.Duration(len(a.durations)), true
}

// Durations returns the retained durations, oldest first.
func (a *DwellAnalyzer) Durations() []time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]time.Duration, len(a.durations))
	copy(out, a.durations)
	return out
}
