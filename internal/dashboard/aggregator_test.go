package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-status-backend/internal/access"
	"parking-status-backend/internal/analytics"
	"parking-status-backend/internal/model"
	"parking-status-backend/internal/store"
	"parking-status-backend/internal/tracker"
)

type fixture struct {
	st      store.Store
	tracker *tracker.Tracker
	dwell   *analytics.DwellAnalyzer
	dedup   *access.Deduplicator
	agg     *Aggregator
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		st:  store.NewMemoryStore(),
		now: time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	f.tracker = tracker.New(f.st, 4, nil, nil, tracker.WithClock(clock))
	require.NoError(t, f.tracker.Restore(context.Background()))
	f.dwell = analytics.NewDwellAnalyzer(0, 0, nil)
	usage := tracker.NewUsageCounter(time.UTC)
	f.tracker.Subscribe(f.dwell)
	f.tracker.Subscribe(usage)

	f.dedup = access.NewDeduplicator(f.st, access.DefaultWindow, time.UTC, nil, nil)
	f.agg = New(f.st, f.tracker, f.dwell, f.dedup, usage, time.UTC)
	f.agg.now = clock
	return f
}

func (f *fixture) telemetry(t *testing.T, raw string, advance time.Duration) {
	t.Helper()
	f.now = f.now.Add(advance)
	_, err := f.tracker.Record(context.Background(), raw)
	require.NoError(t, err)
}

func TestAggregator_Empty(t *testing.T) {
	f := newFixture(t)

	stats, err := f.agg.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Zero(t, stats.ActiveVehicles)
	assert.True(t, stats.RevenueToday.IsZero())
	assert.Equal(t, SlotSummary{Total: 4, Free: 4}, stats.Slots)
	assert.Equal(t, 0.0, stats.OccupancyRate)
	assert.Nil(t, stats.AverageDwellSeconds)
	assert.Nil(t, stats.AverageStaySeconds)
	assert.Empty(t, stats.AverageDwell)
	assert.Nil(t, stats.PeakHour)
	assert.Zero(t, stats.AccessesToday)
}

func TestAggregator_Composes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.telemetry(t, "slot1:ocupada", 0)
	f.telemetry(t, "slot1:livre", 30*time.Second)
	f.telemetry(t, "slot2:ocupada", time.Second)
	f.telemetry(t, "slot3:bloqueada", time.Second)

	dayStart := model.StartOfDay(f.now, time.UTC)
	for i, h := range []int{9, 9, 14, 14, 14, 20} {
		accepted, err := f.dedup.Record(ctx, dayStart.Add(time.Duration(h)*time.Hour+time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.True(t, accepted)
	}

	paidAt := f.now
	amount := decimal.RequireFromString("12.10")
	stay := int64(7230)
	require.NoError(t, f.st.CreateSession(ctx, &model.VehicleSession{
		GateCode: "PAID", EntryAt: dayStart.Add(8 * time.Hour), ExitAt: &paidAt, ElapsedSeconds: &stay,
		Charge: &amount, PaidAmount: &amount, PaidAt: &paidAt, State: model.SessionPaid,
	}, 0))
	require.NoError(t, f.st.CreateSession(ctx, &model.VehicleSession{
		GateCode: "IN", EntryAt: dayStart.Add(10 * time.Hour), State: model.SessionActive,
	}, 0))

	stats, err := f.agg.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.ActiveVehicles)
	assert.Equal(t, int64(2), stats.EntriesToday)
	assert.Equal(t, int64(1), stats.ExitsToday)
	assert.Equal(t, "12.10", stats.RevenueToday.StringFixed(2))
	require.NotNil(t, stats.AverageStaySeconds)
	assert.Equal(t, 7230.0, *stats.AverageStaySeconds)
	assert.Equal(t, "2h 0min 30s", stats.AverageStay)

	assert.Equal(t, SlotSummary{Total: 4, Free: 2, Occupied: 1, Blocked: 1}, stats.Slots)
	assert.Equal(t, 25.0, stats.OccupancyRate)
	assert.Equal(t, map[int]int{1: 1, 2: 1}, stats.SlotUsageToday)

	require.NotNil(t, stats.AverageDwellSeconds)
	assert.Equal(t, 30.0, *stats.AverageDwellSeconds)
	assert.Equal(t, "30s", stats.AverageDwell)

	assert.Equal(t, 6, stats.AccessesToday)
	require.NotNil(t, stats.PeakHour)
	assert.Equal(t, 14, *stats.PeakHour)
	assert.Equal(t, "14:00", stats.PeakHourLabel)
	assert.Equal(t, 3, stats.HourlyAccesses[14])
}

func TestOccupancyRate(t *testing.T) {
	assert.Equal(t, 0.0, OccupancyRate(0, 0))
	assert.Equal(t, 50.0, OccupancyRate(1, 2))
	assert.Equal(t, 33.3, OccupancyRate(1, 3))
	assert.Equal(t, 100.0, OccupancyRate(2, 2))
}
