// Package tracker keeps the live state of every parking slot and turns raw
// telemetry into committed transitions.
package tracker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"parking-status-backend/internal/logging"
	"parking-status-backend/internal/metrics"
	"parking-status-backend/internal/model"
	"parking-status-backend/internal/parse"
)

// Listener is notified after a transition has been committed.
type Listener interface {
	OnTransition(rec model.OccupationRecord)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(rec model.OccupationRecord)

func (f ListenerFunc) OnTransition(rec model.OccupationRecord) { f(rec) }

// Store is the persistence the tracker needs.
type Store interface {
	EnsureSlots(ctx context.Context, n int, at time.Time) error
	SlotStates(ctx context.Context) ([]model.SlotState, error)
	RecordTransition(ctx context.Context, rec *model.OccupationRecord, state model.SlotState) error
}

// Result is the outcome of one telemetry message.
type Result struct {
	Slot    model.SlotState
	Changed bool
}

// Tracker owns one SlotState per configured slot. Updates to the same slot
// are serialized; different slots proceed independently.
type Tracker struct {
	store   Store
	slots   int
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *zap.Logger

	slotLocks []sync.Mutex

	mu        sync.RWMutex
	states    map[int]model.SlotState
	listeners []Listener
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates a tracker for slots numbered 1..slots, all initially free.
func New(store Store, slots int, m *metrics.Metrics, logger *zap.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		store:     store,
		slots:     slots,
		now:       time.Now,
		metrics:   m,
		logger:    logging.OrNop(logger),
		slotLocks: make([]sync.Mutex, slots+1),
		states:    make(map[int]model.SlotState, slots),
	}
	for _, opt := range opts {
		opt(t)
	}
	for n := 1; n <= slots; n++ {
		t.states[n] = model.SlotState{Number: n, State: model.SlotFree}
	}
	return t
}

// Subscribe registers l for every committed transition.
func (t *Tracker) Subscribe(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

// Slots returns the number of configured slots.
func (t *Tracker) Slots() int { return t.slots }

// Restore seeds missing slots as free and loads the persisted live state.
func (t *Tracker) Restore(ctx context.Context) error {
	if err := t.store.EnsureSlots(ctx, t.slots, t.now().UTC()); err != nil {
		return fmt.Errorf("failed to seed slots: %w", err)
	}
	persisted, err := t.store.SlotStates(ctx)
	if err != nil {
		return fmt.Errorf("failed to load slot states: %w", err)
	}

	t.mu.Lock()
	for _, s := range persisted {
		if s.Number < 1 || s.Number > t.slots {
			continue
		}
		t.states[s.Number] = s
	}
	t.mu.Unlock()

	t.publishCounts()
	t.logger.Info("slot states restored", zap.Int("slots", t.slots))
	return nil
}

// Record parses raw telemetry and applies it.
func (t *Tracker) Record(ctx context.Context, raw string) (Result, error) {
	msg, err := parse.ParseTelemetry(raw)
	if err != nil {
		t.metrics.RecordTelemetry("malformed")
		return Result{}, err
	}
	return t.Apply(ctx, msg.Slot, msg.Status)
}

// Apply moves slot to status. Repeating the current status is a no-op.
// The transition is persisted before memory is updated and listeners run,
// so a store failure leaves the tracker unchanged.
func (t *Tracker) Apply(ctx context.Context, slot int, status model.SlotStatus) (Result, error) {
	if slot < 1 || slot > t.slots {
		t.metrics.RecordTelemetry("malformed")
		return Result{}, fmt.Errorf("%w: slot %d is not configured", model.ErrMalformedMessage, slot)
	}

	t.slotLocks[slot].Lock()
	defer t.slotLocks[slot].Unlock()

	t.mu.RLock()
	current := t.states[slot]
	t.mu.RUnlock()

	if current.State == status {
		t.metrics.RecordTelemetry("unchanged")
		return Result{Slot: current}, nil
	}

	now := t.now().UTC()
	rec := model.OccupationRecord{Slot: slot, Previous: current.State, Next: status, At: now}
	next := model.SlotState{Number: slot, State: status, ChangedAt: now}
	if err := t.store.RecordTransition(ctx, &rec, next); err != nil {
		t.metrics.RecordTelemetry("error")
		logging.FromContext(ctx, t.logger).Error("failed to persist slot transition",
			zap.Int("slot", slot), zap.String("state", string(status)), zap.Error(err))
		return Result{}, err
	}

	t.mu.Lock()
	t.states[slot] = next
	listeners := append([]Listener(nil), t.listeners...)
	t.mu.Unlock()

	t.metrics.RecordTelemetry("applied")
	t.publishCounts()
	logging.FromContext(ctx, t.logger).Info("slot transition",
		zap.Int("slot", slot),
		zap.String("from", string(rec.Previous)),
		zap.String("to", string(rec.Next)),
	)

	for _, l := range listeners {
		l.OnTransition(rec)
	}
	return Result{Slot: next, Changed: true}, nil
}

// Block marks a slot as unavailable through the regular telemetry path.
func (t *Tracker) Block(ctx context.Context, slot int) (Result, error) {
	return t.Record(ctx, parse.FormatTelemetry(slot, model.SlotBlocked))
}

// Unblock releases a slot through the regular telemetry path.
func (t *Tracker) Unblock(ctx context.Context, slot int) (Result, error) {
	return t.Record(ctx, parse.FormatTelemetry(slot, model.SlotFree))
}

// Snapshot returns every slot ordered by number.
func (t *Tracker) Snapshot() []model.SlotState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.SlotState, 0, len(t.states))
	for _, s := range t.states {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Counts returns the number of slots in each state.
func (t *Tracker) Counts() map[model.SlotStatus]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	counts := map[model.SlotStatus]int{
		model.SlotFree:     0,
		model.SlotOccupied: 0,
		model.SlotBlocked:  0,
	}
	for _, s := range t.states {
		counts[s.State]++
	}
	return counts
}

func (t *Tracker) publishCounts() {
	for state, n := range t.Counts() {
		t.metrics.SetSlots(string(state), n)
	}
}
