// Package access collapses duplicate access signals raised by several
// observers of the same physical event.
package access

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"parking-status-backend/internal/logging"
	"parking-status-backend/internal/metrics"
	"parking-status-backend/internal/model"
)

// DefaultWindow is the minimum spacing between two accepted signals.
const DefaultWindow = 2000 * time.Millisecond

// Accept reports whether a signal arriving at now is distinct from the last
// accepted one. A zero last always accepts.
func Accept(now, last time.Time, window time.Duration) bool {
	if last.IsZero() {
		return true
	}
	return now.Sub(last) >= window
}

// Store is the persistence the deduplicator needs.
type Store interface {
	CreateAccess(ctx context.Context, ev *model.AccessEvent) error
	AccessesSince(ctx context.Context, since time.Time) ([]model.AccessEvent, error)
}

// Deduplicator debounces access signals and persists the accepted ones.
type Deduplicator struct {
	store   Store
	window  time.Duration
	loc     *time.Location
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu   sync.Mutex
	last time.Time
}

// NewDeduplicator creates a deduplicator. loc decides where "today" starts.
func NewDeduplicator(store Store, window time.Duration, loc *time.Location, m *metrics.Metrics, logger *zap.Logger) *Deduplicator {
	if window <= 0 {
		window = DefaultWindow
	}
	if loc == nil {
		loc = time.Local
	}
	return &Deduplicator{store: store, window: window, loc: loc, metrics: m, logger: logging.OrNop(logger)}
}

// Record applies the debounce rule to a signal observed at at. A rejected
// signal is not an error. When persistence fails the acceptance is rolled
// back so a retry is not itself treated as a duplicate.
func (d *Deduplicator) Record(ctx context.Context, at time.Time) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !Accept(at, d.last, d.window) {
		d.metrics.RecordAccess("duplicate")
		return false, nil
	}

	previous := d.last
	d.last = at
	if err := d.store.CreateAccess(ctx, &model.AccessEvent{At: at.UTC()}); err != nil {
		d.last = previous
		d.metrics.RecordAccess("error")
		logging.FromContext(ctx, d.logger).Warn("failed to persist access signal", zap.Error(err))
		return false, fmt.Errorf("failed to record access: %w", err)
	}

	d.metrics.RecordAccess("accepted")
	return true, nil
}

// CountToday returns the number of accepted accesses since local midnight.
func (d *Deduplicator) CountToday(ctx context.Context, now time.Time) (int, error) {
	events, err := d.TodayTimestamps(ctx, now)
	if err != nil {
		return 0, err
	}
	return len(events), nil
}

// TodayTimestamps lists the accepted access times since local midnight.
func (d *Deduplicator) TodayTimestamps(ctx context.Context, now time.Time) ([]time.Time, error) {
	events, err := d.store.AccessesSince(ctx, model.StartOfDay(now, d.loc))
	if err != nil {
		return nil, fmt.Errorf("failed to list accesses: %w", err)
	}
	out := make([]time.Time, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.At)
	}
	return out, nil
}
