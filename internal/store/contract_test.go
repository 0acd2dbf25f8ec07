package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"parking-status-backend/internal/db"
	"parking-status-backend/internal/model"
)

// backends returns every Store implementation, each backed by fresh storage.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gormDB, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	t.Cleanup(func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": NewGormStore(gormDB),
	}
}

func ptrDecimal(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestStore_SessionLifecycle(t *testing.T) {
	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.LatestSession(ctx, "ABC")
			require.ErrorIs(t, err, model.ErrNotFound)

			first := &model.VehicleSession{GateCode: "ABC", EntryAt: base, State: model.SessionActive}
			require.NoError(t, s.CreateSession(ctx, first, 0))
			require.NotZero(t, first.ID)

			active, err := s.ActiveSession(ctx, "ABC")
			require.NoError(t, err)
			assert.Equal(t, first.ID, active.ID)

			exit := base.Add(30 * time.Minute)
			elapsed := int64(1800)
			active.ExitAt = &exit
			active.ElapsedSeconds = &elapsed
			active.Charge = ptrDecimal("2.99")
			active.State = model.SessionAwaitingPayment
			require.NoError(t, s.UpdateSession(ctx, active))

			_, err = s.ActiveSession(ctx, "ABC")
			assert.ErrorIs(t, err, model.ErrNotFound)

			latest, err := s.LatestSession(ctx, "ABC")
			require.NoError(t, err)
			assert.Equal(t, model.SessionAwaitingPayment, latest.State)
			require.NotNil(t, latest.Charge)
			assert.True(t, latest.Charge.Equal(decimal.RequireFromString("2.99")))
			require.NotNil(t, latest.ElapsedSeconds)
			assert.Equal(t, int64(1800), *latest.ElapsedSeconds)

			// Re-entry compacts the previous record.
			second := &model.VehicleSession{GateCode: "ABC", EntryAt: base.Add(time.Hour), State: model.SessionActive}
			require.NoError(t, s.CreateSession(ctx, second, first.ID))

			assert.NotEqual(t, first.ID, second.ID)
			_, err = s.SessionByID(ctx, first.ID)
			assert.ErrorIs(t, err, model.ErrNotFound)

			all, err := s.AllSessions(ctx)
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, second.ID, all[0].ID)
		})
	}
}

func TestStore_SessionListsAndStats(t *testing.T) {
	dayStart := time.Date(2024, 5, 10, 3, 0, 0, 0, time.UTC)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			yesterday := &model.VehicleSession{GateCode: "OLD", EntryAt: dayStart.Add(-2 * time.Hour), State: model.SessionActive}
			morning := &model.VehicleSession{GateCode: "AAA", EntryAt: dayStart.Add(time.Hour), State: model.SessionActive}
			noon := &model.VehicleSession{GateCode: "BBB", EntryAt: dayStart.Add(5 * time.Hour), State: model.SessionActive}
			for _, sess := range []*model.VehicleSession{yesterday, morning, noon} {
				require.NoError(t, s.CreateSession(ctx, sess, 0))
			}

			exit := dayStart.Add(2 * time.Hour)
			stay := int64(3600)
			morning.ExitAt = &exit
			morning.ElapsedSeconds = &stay
			morning.Charge = ptrDecimal("10.00")
			morning.PaidAmount = ptrDecimal("10.00")
			morning.PaidAt = &exit
			morning.PaymentMethod = "pix"
			morning.State = model.SessionPaid
			require.NoError(t, s.UpdateSession(ctx, morning))

			active, err := s.ActiveSessions(ctx)
			require.NoError(t, err)
			require.Len(t, active, 2)
			assert.Equal(t, "BBB", active[0].GateCode)
			assert.Equal(t, "OLD", active[1].GateCode)

			all, err := s.AllSessions(ctx)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, []string{"BBB", "AAA", "OLD"}, []string{all[0].GateCode, all[1].GateCode, all[2].GateCode})

			stats, err := s.SessionStats(ctx, dayStart)
			require.NoError(t, err)
			assert.Equal(t, int64(2), stats.Active)
			assert.Equal(t, int64(0), stats.AwaitingPayment)
			assert.Equal(t, int64(2), stats.EntriesToday)
			assert.Equal(t, int64(1), stats.ExitsToday)
			assert.Equal(t, int64(3600), stats.StaySecondsToday)
			assert.True(t, stats.RevenueToday.Equal(decimal.NewFromInt(10)), "revenue %s", stats.RevenueToday)
		})
	}
}

func TestStore_SlotsAndOccupations(t *testing.T) {
	base := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.EnsureSlots(ctx, 2, base))
			states, err := s.SlotStates(ctx)
			require.NoError(t, err)
			require.Len(t, states, 2)
			assert.Equal(t, model.SlotFree, states[0].State)

			steps := []struct {
				slot       int
				prev, next model.SlotStatus
				at         time.Time
			}{
				{1, model.SlotFree, model.SlotOccupied, base.Add(1 * time.Minute)},
				{2, model.SlotFree, model.SlotOccupied, base.Add(2 * time.Minute)},
				{1, model.SlotOccupied, model.SlotFree, base.Add(3 * time.Minute)},
			}
			for _, st := range steps {
				rec := &model.OccupationRecord{Slot: st.slot, Previous: st.prev, Next: st.next, At: st.at}
				require.NoError(t, s.RecordTransition(ctx, rec, model.SlotState{Number: st.slot, State: st.next, ChangedAt: st.at}))
				require.NotZero(t, rec.ID)
			}

			// Seeding again must not reset live state.
			require.NoError(t, s.EnsureSlots(ctx, 2, base.Add(time.Hour)))
			states, err = s.SlotStates(ctx)
			require.NoError(t, err)
			assert.Equal(t, model.SlotFree, states[0].State)
			assert.Equal(t, model.SlotOccupied, states[1].State)

			recent, err := s.RecentOccupations(ctx, 2)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, 2, recent[0].Slot)
			assert.Equal(t, model.SlotFree, recent[1].Next)

			since, err := s.OccupationsSince(ctx, base.Add(90*time.Second))
			require.NoError(t, err)
			assert.Len(t, since, 2)
		})
	}
}

func TestStore_Accesses(t *testing.T) {
	base := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, offset := range []time.Duration{-time.Hour, time.Minute, 2 * time.Minute} {
				require.NoError(t, s.CreateAccess(ctx, &model.AccessEvent{At: base.Add(offset)}))
			}

			events, err := s.AccessesSince(ctx, base)
			require.NoError(t, err)
			require.Len(t, events, 2)
			assert.True(t, events[0].At.Before(events[1].At))
		})
	}
}

func TestStore_ReplacePricing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.ActivePricing(ctx)
			require.ErrorIs(t, err, model.ErrNotFound)

			require.NoError(t, s.ReplacePricing(ctx, &model.PricingConfig{
				Unit: model.PerSecond, UnitPrice: decimal.RequireFromString("0.00166"), Minimum: decimal.NewFromInt(1),
			}))
			require.NoError(t, s.ReplacePricing(ctx, &model.PricingConfig{
				Unit: model.PerMinute, UnitPrice: decimal.RequireFromString("0.10"), Minimum: decimal.Zero, Maximum: ptrDecimal("50"),
			}))

			cfg, err := s.ActivePricing(ctx)
			require.NoError(t, err)
			assert.Equal(t, model.PerMinute, cfg.Unit)
			assert.True(t, cfg.Active)
			require.NotNil(t, cfg.Maximum)
			assert.True(t, cfg.Maximum.Equal(decimal.NewFromInt(50)))
		})
	}
}

func TestStore_Subscriptions(t *testing.T) {
	base := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.EnsureSlots(ctx, 3, base))

			sub := &model.PushSubscription{Endpoint: "https://push.example/1", P256DH: "key", Auth: "auth"}
			require.NoError(t, s.PutSubscription(ctx, sub, []int{1, 3, 9}))

			got, err := s.Subscription(ctx, sub.Endpoint)
			require.NoError(t, err)
			var numbers []int
			for _, slot := range got.Slots {
				numbers = append(numbers, slot.Number)
			}
			assert.ElementsMatch(t, []int{1, 3}, numbers)

			subs, err := s.SubscriptionsForSlot(ctx, 3)
			require.NoError(t, err)
			require.Len(t, subs, 1)
			assert.Equal(t, "auth", subs[0].Auth)

			// Upsert narrows the slot set and refreshes keys.
			sub.Auth = "auth2"
			require.NoError(t, s.PutSubscription(ctx, sub, []int{2}))
			subs, err = s.SubscriptionsForSlot(ctx, 3)
			require.NoError(t, err)
			assert.Empty(t, subs)
			subs, err = s.SubscriptionsForSlot(ctx, 2)
			require.NoError(t, err)
			require.Len(t, subs, 1)
			assert.Equal(t, "auth2", subs[0].Auth)

			require.NoError(t, s.DeleteSubscription(ctx, sub.Endpoint))
			_, err = s.Subscription(ctx, sub.Endpoint)
			assert.ErrorIs(t, err, model.ErrNotFound)
			subs, err = s.SubscriptionsForSlot(ctx, 2)
			require.NoError(t, err)
			assert.Empty(t, subs)
		})
	}
}
