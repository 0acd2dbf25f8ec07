package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parking-status-backend/internal/model"
)

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// wrapErr maps GORM errors onto the model error classes.
func wrapErr(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, model.ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %v", op, model.ErrUnavailable, err)
}

// --- Sessions ---

func (s *gormStore) LatestSession(ctx context.Context, gateCode string) (*model.VehicleSession, error) {
	var sess model.VehicleSession
	if err := s.db.WithContext(ctx).
		Where("gate_code = ?", gateCode).
		Order("id DESC").
		First(&sess).Error; err != nil {
		return nil, wrapErr("latest session", err)
	}
	return &sess, nil
}

func (s *gormStore) ActiveSession(ctx context.Context, gateCode string) (*model.VehicleSession, error) {
	var sess model.VehicleSession
	if err := s.db.WithContext(ctx).
		Where("gate_code = ? AND state = ?", gateCode, model.SessionActive).
		Order("id DESC").
		First(&sess).Error; err != nil {
		return nil, wrapErr("active session", err)
	}
	return &sess, nil
}

func (s *gormStore) SessionByID(ctx context.Context, id int64) (*model.VehicleSession, error) {
	var sess model.VehicleSession
	if err := s.db.WithContext(ctx).First(&sess, id).Error; err != nil {
		return nil, wrapErr("session by id", err)
	}
	return &sess, nil
}

func (s *gormStore) ActiveSessions(ctx context.Context) ([]model.VehicleSession, error) {
	var sessions []model.VehicleSession
	if err := s.db.WithContext(ctx).
		Where("state = ?", model.SessionActive).
		Order("entry_at DESC").
		Find(&sessions).Error; err != nil {
		return nil, wrapErr("active sessions", err)
	}
	return sessions, nil
}

func (s *gormStore) AllSessions(ctx context.Context) ([]model.VehicleSession, error) {
	var sessions []model.VehicleSession
	if err := s.db.WithContext(ctx).Order("entry_at DESC, id DESC").Find(&sessions).Error; err != nil {
		return nil, wrapErr("all sessions", err)
	}
	return sessions, nil
}

// CreateSession inserts a new session, soft-deleting the superseded record in
// the same transaction. The retained row keeps SQLite from reusing its ID.
func (s *gormStore) CreateSession(ctx context.Context, sess *model.VehicleSession, supersededID int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if supersededID != 0 {
			if err := tx.Delete(&model.VehicleSession{}, supersededID).Error; err != nil {
				return fmt.Errorf("failed to delete superseded session %d: %w", supersededID, err)
			}
		}
		if err := tx.Create(sess).Error; err != nil {
			return fmt.Errorf("failed to create session for %q: %w", sess.GateCode, err)
		}
		return nil
	})
	if err != nil {
		return wrapErr("create session", err)
	}
	return nil
}

func (s *gormStore) UpdateSession(ctx context.Context, sess *model.VehicleSession) error {
	if err := s.db.WithContext(ctx).Save(sess).Error; err != nil {
		return wrapErr("update session", err)
	}
	return nil
}

func (s *gormStore) SessionStats(ctx context.Context, since time.Time) (model.SessionStats, error) {
	var stats model.SessionStats
	db := s.db.WithContext(ctx)

	counts := []struct {
		dest  *int64
		query string
		arg   any
	}{
		{&stats.Active, "state = ?", model.SessionActive},
		{&stats.AwaitingPayment, "state = ?", model.SessionAwaitingPayment},
		{&stats.EntriesToday, "entry_at >= ?", since.UTC()},
		{&stats.ExitsToday, "exit_at >= ?", since.UTC()},
	}
	for _, c := range counts {
		if err := db.Model(&model.VehicleSession{}).Where(c.query, c.arg).Count(c.dest).Error; err != nil {
			return model.SessionStats{}, wrapErr("session stats", err)
		}
	}

	if err := db.Model(&model.VehicleSession{}).
		Where("exit_at >= ?", since.UTC()).
		Select("COALESCE(SUM(elapsed_seconds), 0)").
		Scan(&stats.StaySecondsToday).Error; err != nil {
		return model.SessionStats{}, wrapErr("session stay", err)
	}

	var paid []model.VehicleSession
	if err := db.Select("paid_amount").Where("paid_at >= ?", since.UTC()).Find(&paid).Error; err != nil {
		return model.SessionStats{}, wrapErr("session revenue", err)
	}
	stats.RevenueToday = sumPaid(paid)
	return stats, nil
}

func sumPaid(sessions []model.VehicleSession) decimal.Decimal {
	total := decimal.Zero
	for _, sess := range sessions {
		if sess.PaidAmount != nil {
			total = total.Add(*sess.PaidAmount)
		}
	}
	return total
}

// --- Slots ---

func (s *gormStore) EnsureSlots(ctx context.Context, n int, at time.Time) error {
	if n <= 0 {
		return nil
	}
	slots := make([]model.SlotState, 0, n)
	for i := 1; i <= n; i++ {
		slots = append(slots, model.SlotState{Number: i, State: model.SlotFree, ChangedAt: at})
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&slots).Error; err != nil {
		return wrapErr("ensure slots", err)
	}
	return nil
}

func (s *gormStore) SlotStates(ctx context.Context) ([]model.SlotState, error) {
	var states []model.SlotState
	if err := s.db.WithContext(ctx).Order("number").Find(&states).Error; err != nil {
		return nil, wrapErr("slot states", err)
	}
	return states, nil
}

// RecordTransition appends the occupation record and overwrites the open slot state transactionally.
func (s *gormStore) RecordTransition(ctx context.Context, rec *model.OccupationRecord, state model.SlotState) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("failed to append occupation record for slot %d: %w", rec.Slot, err)
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "number"}},
			DoUpdates: clause.AssignmentColumns([]string{"state", "changed_at"}),
		}).Create(&state).Error; err != nil {
			return fmt.Errorf("failed to update state for slot %d: %w", state.Number, err)
		}
		return nil
	})
	if err != nil {
		return wrapErr("record transition", err)
	}
	return nil
}

func (s *gormStore) RecentOccupations(ctx context.Context, limit int) ([]model.OccupationRecord, error) {
	var records []model.OccupationRecord
	if err := s.db.WithContext(ctx).
		Order("at DESC, id DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, wrapErr("recent occupations", err)
	}
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

func (s *gormStore) OccupationsSince(ctx context.Context, since time.Time) ([]model.OccupationRecord, error) {
	var records []model.OccupationRecord
	if err := s.db.WithContext(ctx).
		Where("at >= ?", since.UTC()).
		Order("at, id").
		Find(&records).Error; err != nil {
		return nil, wrapErr("occupations since", err)
	}
	return records, nil
}

// --- Accesses ---

func (s *gormStore) CreateAccess(ctx context.Context, ev *model.AccessEvent) error {
	if err := s.db.WithContext(ctx).Create(ev).Error; err != nil {
		return wrapErr("create access", err)
	}
	return nil
}

func (s *gormStore) AccessesSince(ctx context.Context, since time.Time) ([]model.AccessEvent, error) {
	var events []model.AccessEvent
	if err := s.db.WithContext(ctx).Where("at >= ?", since.UTC()).Order("at").Find(&events).Error; err != nil {
		return nil, wrapErr("accesses since", err)
	}
	return events, nil
}

// --- Pricing ---

func (s *gormStore) ActivePricing(ctx context.Context) (*model.PricingConfig, error) {
	var cfg model.PricingConfig
	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("id DESC").First(&cfg).Error; err != nil {
		return nil, wrapErr("active pricing", err)
	}
	return &cfg, nil
}

func (s *gormStore) ReplacePricing(ctx context.Context, cfg *model.PricingConfig) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.PricingConfig{}).Where("active = ?", true).Update("active", false).Error; err != nil {
			return fmt.Errorf("failed to deactivate pricing: %w", err)
		}
		cfg.Active = true
		if err := tx.Create(cfg).Error; err != nil {
			return fmt.Errorf("failed to insert pricing: %w", err)
		}
		return nil
	})
	if err != nil {
		return wrapErr("replace pricing", err)
	}
	return nil
}

// --- Subscriptions ---

func (s *gormStore) PutSubscription(ctx context.Context, sub *model.PushSubscription, slots []int) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Omit(clause.Associations).Create(sub).Error; err != nil {
			return err
		}

		var states []model.SlotState
		if len(slots) > 0 {
			if err := tx.Where("number IN ?", slots).Find(&states).Error; err != nil {
				return err
			}
		}
		return tx.Model(sub).Association("Slots").Replace(&states)
	})
	if err != nil {
		return wrapErr("put subscription", err)
	}
	return nil
}

func (s *gormStore) Subscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).Preload("Slots").First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		return nil, wrapErr("subscription", err)
	}
	return &sub, nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub := model.PushSubscription{Endpoint: endpoint}
		if err := tx.Model(&sub).Association("Slots").Clear(); err != nil {
			return err
		}
		return tx.Delete(&sub).Error
	})
	if err != nil {
		return wrapErr("delete subscription", err)
	}
	return nil
}

func (s *gormStore) SubscriptionsForSlot(ctx context.Context, slot int) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).
		Joins("JOIN subscription_slot_mapping ssm ON ssm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("ssm.slot_state_number = ?", slot).
		Find(&subs).Error; err != nil {
		return nil, wrapErr("subscriptions for slot", err)
	}
	return subs, nil
}
