package tracker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-status-backend/internal/analytics"
	"parking-status-backend/internal/model"
	"parking-status-backend/internal/store"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// flakyStore fails RecordTransition while fail is set.
type flakyStore struct {
	store.Store
	fail bool
}

func (f *flakyStore) RecordTransition(ctx context.Context, rec *model.OccupationRecord, state model.SlotState) error {
	if f.fail {
		return fmt.Errorf("record transition: %w", model.ErrUnavailable)
	}
	return f.Store.RecordTransition(ctx, rec, state)
}

func newTracker(t *testing.T, st Store, slots int) (*Tracker, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)}
	tr := New(st, slots, nil, nil, WithClock(clock.Now))
	require.NoError(t, tr.Restore(context.Background()))
	return tr, clock
}

func TestTracker_OccupiedThenFree(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	tr, clock := newTracker(t, st, 2)

	dwell := analytics.NewDwellAnalyzer(analytics.DefaultMinDwell, analytics.DefaultWindow, nil)
	tr.Subscribe(dwell)

	res, err := tr.Record(ctx, "slot1:ocupada")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, model.SlotOccupied, res.Slot.State)

	clock.Advance(30 * time.Second)
	res, err = tr.Record(ctx, "slot1:livre")
	require.NoError(t, err)
	assert.True(t, res.Changed)

	records, err := st.RecentOccupations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, model.SlotOccupied, records[0].Next)
	assert.Equal(t, model.SlotFree, records[1].Next)

	avg, ok := dwell.Average()
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, avg)
}

func TestTracker_RepeatedTelemetryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	tr, _ := newTracker(t, st, 1)

	var notified int
	tr.Subscribe(ListenerFunc(func(model.OccupationRecord) { notified++ }))

	for i := 0; i < 3; i++ {
		_, err := tr.Record(ctx, "vaga1:ocupada")
		require.NoError(t, err)
	}

	records, err := st.RecentOccupations(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, notified)
}

func TestTracker_MalformedMessages(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker(t, store.NewMemoryStore(), 2)

	for _, raw := range []string{"slot3:livre", "slot1:maybe", "garbage"} {
		_, err := tr.Record(ctx, raw)
		assert.ErrorIs(t, err, model.ErrMalformedMessage, raw)
	}
	for _, s := range tr.Snapshot() {
		assert.Equal(t, model.SlotFree, s.State)
	}
}

func TestTracker_StoreFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	st := &flakyStore{Store: store.NewMemoryStore()}
	tr, _ := newTracker(t, st, 1)

	var notified int
	tr.Subscribe(ListenerFunc(func(model.OccupationRecord) { notified++ }))

	st.fail = true
	_, err := tr.Record(ctx, "slot1:ocupada")
	assert.ErrorIs(t, err, model.ErrUnavailable)
	assert.Equal(t, model.SlotFree, tr.Snapshot()[0].State)
	assert.Zero(t, notified)

	st.fail = false
	res, err := tr.Record(ctx, "slot1:ocupada")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 1, notified)
}

func TestTracker_RestoreFromStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	first, _ := newTracker(t, st, 2)
	_, err := first.Block(ctx, 2)
	require.NoError(t, err)

	second, _ := newTracker(t, st, 2)
	snap := second.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, model.SlotFree, snap[0].State)
	assert.Equal(t, model.SlotBlocked, snap[1].State)

	counts := second.Counts()
	assert.Equal(t, 1, counts[model.SlotFree])
	assert.Equal(t, 1, counts[model.SlotBlocked])
	assert.Equal(t, 0, counts[model.SlotOccupied])
}

func TestTracker_BlockUnblock(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker(t, store.NewMemoryStore(), 1)

	res, err := tr.Block(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.SlotBlocked, res.Slot.State)

	res, err = tr.Unblock(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.SlotFree, res.Slot.State)

	_, err = tr.Block(ctx, 5)
	assert.ErrorIs(t, err, model.ErrMalformedMessage)
}

func TestUsageCounter(t *testing.T) {
	ctx := context.Background()
	tr, clock := newTracker(t, store.NewMemoryStore(), 2)
	usage := NewUsageCounter(time.UTC)
	tr.Subscribe(usage)

	steps := []string{"slot1:ocupada", "slot1:livre", "slot1:ocupada", "slot2:bloqueada", "slot2:ocupada"}
	for _, raw := range steps {
		clock.Advance(time.Minute)
		_, err := tr.Record(ctx, raw)
		require.NoError(t, err)
	}

	today := usage.Today(clock.Now())
	assert.Equal(t, 2, today[1])
	// Blocked to occupied is not an access.
	assert.Equal(t, 0, today[2])

	assert.Empty(t, usage.Today(clock.Now().Add(24*time.Hour)))

	clock.Advance(24 * time.Hour)
	_, err := tr.Record(ctx, "slot1:livre")
	require.NoError(t, err)
	_, err = tr.Record(ctx, "slot1:ocupada")
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 1}, usage.Today(clock.Now()))
}
