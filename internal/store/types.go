package store

import (
	"context"
	"time"

	"parking-status-backend/internal/model"
)

// Store defines the interface for all persistence operations. Every
// implementation reports a missing row as model.ErrNotFound and a backend
// failure as model.ErrUnavailable.
type Store interface {
	SessionStore
	SlotStore
	AccessStore
	PricingStore
	SubscriptionStore
}

// SessionStore persists vehicle sessions.
type SessionStore interface {
	// LatestSession returns the most recently created session for a gate code.
	LatestSession(ctx context.Context, gateCode string) (*model.VehicleSession, error)
	ActiveSession(ctx context.Context, gateCode string) (*model.VehicleSession, error)
	SessionByID(ctx context.Context, id int64) (*model.VehicleSession, error)
	ActiveSessions(ctx context.Context) ([]model.VehicleSession, error)
	// AllSessions returns every retained session, newest entry first.
	AllSessions(ctx context.Context) ([]model.VehicleSession, error)
	// CreateSession inserts s, deleting supersededID in the same transaction when non-zero.
	CreateSession(ctx context.Context, s *model.VehicleSession, supersededID int64) error
	UpdateSession(ctx context.Context, s *model.VehicleSession) error
	SessionStats(ctx context.Context, since time.Time) (model.SessionStats, error)
}

// SlotStore persists slot states and the occupation log.
type SlotStore interface {
	// EnsureSlots creates a free state row for every slot in 1..n that has none.
	EnsureSlots(ctx context.Context, n int, at time.Time) error
	SlotStates(ctx context.Context) ([]model.SlotState, error)
	// RecordTransition appends rec and overwrites the slot's state atomically.
	RecordTransition(ctx context.Context, rec *model.OccupationRecord, state model.SlotState) error
	// RecentOccupations returns up to limit newest records in chronological order.
	RecentOccupations(ctx context.Context, limit int) ([]model.OccupationRecord, error)
	OccupationsSince(ctx context.Context, since time.Time) ([]model.OccupationRecord, error)
}

// AccessStore persists accepted access signals.
type AccessStore interface {
	CreateAccess(ctx context.Context, ev *model.AccessEvent) error
	AccessesSince(ctx context.Context, since time.Time) ([]model.AccessEvent, error)
}

// PricingStore persists pricing versions.
type PricingStore interface {
	ActivePricing(ctx context.Context) (*model.PricingConfig, error)
	// ReplacePricing deactivates the current version and inserts cfg as the active one.
	ReplacePricing(ctx context.Context, cfg *model.PricingConfig) error
}

// SubscriptionStore persists push subscriptions.
type SubscriptionStore interface {
	PutSubscription(ctx context.Context, sub *model.PushSubscription, slots []int) error
	Subscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForSlot(ctx context.Context, slot int) ([]model.PushSubscription, error)
}
