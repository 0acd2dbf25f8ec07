// Package session owns the vehicle session lifecycle: entry, exit with
// billing, and payment confirmation.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"parking-status-backend/internal/analytics"
	"parking-status-backend/internal/logging"
	"parking-status-backend/internal/metrics"
	"parking-status-backend/internal/model"
	"parking-status-backend/internal/payment"
)

// Store is the persistence the service needs.
type Store interface {
	LatestSession(ctx context.Context, gateCode string) (*model.VehicleSession, error)
	ActiveSession(ctx context.Context, gateCode string) (*model.VehicleSession, error)
	SessionByID(ctx context.Context, id int64) (*model.VehicleSession, error)
	ActiveSessions(ctx context.Context) ([]model.VehicleSession, error)
	AllSessions(ctx context.Context) ([]model.VehicleSession, error)
	CreateSession(ctx context.Context, s *model.VehicleSession, supersededID int64) error
	UpdateSession(ctx context.Context, s *model.VehicleSession) error
}

// Charger prices an elapsed duration under the active configuration.
type Charger interface {
	Charge(elapsedSeconds int64) (decimal.Decimal, error)
}

// PayloadEncoder produces the payment reference for a billed session.
type PayloadEncoder interface {
	Encode(code string, amount decimal.Decimal) (payment.Reference, error)
}

// View is a session as returned to callers. Active sessions carry live
// elapsed time and charge that are never persisted.
type View struct {
	model.VehicleSession
	FormattedDuration string             `json:"formatted_duration"`
	Payment           *payment.Reference `json:"payment,omitempty"`
}

// Service serializes every operation touching the same gate code.
type Service struct {
	store   Store
	pricing Charger
	encoder PayloadEncoder
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *zap.Logger
	locks   *keyedMutex
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithEncoder attaches the payment payload encoder.
func WithEncoder(enc PayloadEncoder) Option {
	return func(s *Service) { s.encoder = enc }
}

// WithMetrics attaches the Prometheus recorders.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a session service.
func NewService(store Store, pricing Charger, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:   store,
		pricing: pricing,
		now:     time.Now,
		logger:  logging.OrNop(logger),
		locks:   newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("%w: gate code is empty", model.ErrMalformedMessage)
	}
	return code, nil
}

// Begin opens a session for code. A prior paid or awaiting-payment record is
// deleted first; an active one is a conflict.
func (s *Service) Begin(ctx context.Context, code string) (*View, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(code)
	defer unlock()

	log := logging.FromContext(ctx, s.logger).With(zap.String("gate_code", code))

	if _, err := s.store.ActiveSession(ctx, code); err == nil {
		s.metrics.RecordSession("begin", "conflict")
		return nil, fmt.Errorf("%w: vehicle %q is already inside", model.ErrConflict, code)
	} else if !errors.Is(err, model.ErrNotFound) {
		s.metrics.RecordSession("begin", "error")
		return nil, err
	}

	var superseded int64
	prior, err := s.store.LatestSession(ctx, code)
	switch {
	case err == nil:
		superseded = prior.ID
	case !errors.Is(err, model.ErrNotFound):
		s.metrics.RecordSession("begin", "error")
		return nil, err
	}

	now := s.now().UTC()
	sess := &model.VehicleSession{
		GateCode:  code,
		EntryAt:   now,
		State:     model.SessionActive,
		CreatedAt: now,
	}
	if err := s.store.CreateSession(ctx, sess, superseded); err != nil {
		s.metrics.RecordSession("begin", "error")
		return nil, err
	}

	if superseded != 0 {
		log.Info("re-entry replaced previous session",
			zap.Int64("previous_id", superseded), zap.String("previous_state", string(prior.State)))
	}
	log.Info("session started", zap.Int64("session_id", sess.ID))
	s.metrics.RecordSession("begin", "ok")
	return s.view(*sess, now), nil
}

// End closes the active session for code and bills it.
func (s *Service) End(ctx context.Context, code string) (*View, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(code)
	defer unlock()

	sess, err := s.store.ActiveSession(ctx, code)
	if err != nil {
		s.metrics.RecordSession("end", outcome(err))
		return nil, err
	}

	now := s.now().UTC()
	elapsed := elapsedSeconds(sess.EntryAt, now)
	charge, err := s.pricing.Charge(elapsed)
	if err != nil {
		s.metrics.RecordSession("end", "error")
		return nil, fmt.Errorf("failed to price session %d: %w", sess.ID, err)
	}

	sess.ExitAt = &now
	sess.ElapsedSeconds = &elapsed
	sess.Charge = &charge
	sess.State = model.SessionAwaitingPayment
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		s.metrics.RecordSession("end", "error")
		return nil, err
	}

	logging.FromContext(ctx, s.logger).Info("session ended",
		zap.String("gate_code", code),
		zap.Int64("session_id", sess.ID),
		zap.Int64("elapsed_seconds", elapsed),
		zap.String("charge", charge.StringFixed(2)),
	)
	s.metrics.RecordSession("end", "ok")
	return s.view(*sess, now), nil
}

// ConfirmPayment settles the session with the given internal id. Paying an
// already paid session fails with ErrNotFound.
func (s *Service) ConfirmPayment(ctx context.Context, id int64, amount decimal.Decimal, method string) (*View, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: negative payment amount %s", model.ErrMalformedMessage, amount)
	}

	sess, err := s.store.SessionByID(ctx, id)
	if err != nil {
		s.metrics.RecordSession("confirm", outcome(err))
		return nil, err
	}
	unlock := s.locks.Lock(sess.GateCode)
	defer unlock()

	// Re-read under the lock; the record may have been superseded meanwhile.
	sess, err = s.store.SessionByID(ctx, id)
	if err != nil {
		s.metrics.RecordSession("confirm", outcome(err))
		return nil, err
	}
	if sess.State == model.SessionPaid {
		s.metrics.RecordSession("confirm", "not_found")
		return nil, fmt.Errorf("%w: session %d is already paid", model.ErrNotFound, id)
	}

	now := s.now().UTC()
	paid := amount.Round(2)
	sess.PaidAmount = &paid
	sess.PaymentMethod = method
	sess.PaidAt = &now
	sess.State = model.SessionPaid
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		s.metrics.RecordSession("confirm", "error")
		return nil, err
	}

	logging.FromContext(ctx, s.logger).Info("payment confirmed",
		zap.Int64("session_id", id),
		zap.String("gate_code", sess.GateCode),
		zap.String("amount", paid.StringFixed(2)),
		zap.String("method", method),
	)
	s.metrics.RecordSession("confirm", "ok")
	return s.view(*sess, now), nil
}

// Snapshot returns the most recent session for code in any state.
func (s *Service) Snapshot(ctx context.Context, code string) (*View, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return nil, err
	}
	sess, err := s.store.LatestSession(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.view(*sess, s.now().UTC()), nil
}

// ListActive returns every active session with live figures.
func (s *Service) ListActive(ctx context.Context) ([]View, error) {
	sessions, err := s.store.ActiveSessions(ctx)
	if err != nil {
		return nil, err
	}
	return s.views(sessions), nil
}

// History returns every retained session, newest entry first.
func (s *Service) History(ctx context.Context) ([]View, error) {
	sessions, err := s.store.AllSessions(ctx)
	if err != nil {
		return nil, err
	}
	return s.views(sessions), nil
}

func (s *Service) views(sessions []model.VehicleSession) []View {
	now := s.now().UTC()
	out := make([]View, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, *s.view(sess, now))
	}
	return out
}

// view fills live figures for active sessions and attaches the payment
// reference to sessions awaiting payment.
func (s *Service) view(sess model.VehicleSession, now time.Time) *View {
	v := &View{VehicleSession: sess}

	switch sess.State {
	case model.SessionActive:
		elapsed := elapsedSeconds(sess.EntryAt, now)
		v.ElapsedSeconds = &elapsed
		if charge, err := s.pricing.Charge(elapsed); err == nil {
			v.Charge = &charge
		} else {
			s.logger.Warn("failed to compute live charge", zap.Int64("session_id", sess.ID), zap.Error(err))
		}
	case model.SessionAwaitingPayment:
		if s.encoder != nil && sess.Charge != nil {
			ref, err := s.encoder.Encode(sess.GateCode, *sess.Charge)
			if err != nil {
				s.logger.Warn("failed to encode payment reference", zap.Int64("session_id", sess.ID), zap.Error(err))
			} else {
				v.Payment = &ref
			}
		}
	}

	if v.ElapsedSeconds != nil {
		v.FormattedDuration = analytics.FormatDuration(time.Duration(*v.ElapsedSeconds) * time.Second)
	}
	return v
}

func elapsedSeconds(from, to time.Time) int64 {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

func outcome(err error) string {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
