package pricing

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"parking-status-backend/config"
	"parking-status-backend/internal/logging"
	"parking-status-backend/internal/model"
)

// ConfigStore is the persistence the manager needs.
type ConfigStore interface {
	ActivePricing(ctx context.Context) (*model.PricingConfig, error)
	ReplacePricing(ctx context.Context, cfg *model.PricingConfig) error
}

// Manager owns the active pricing configuration. Reads are lock-free; an
// update becomes visible to every charge computed after Set returns.
type Manager struct {
	store   ConfigStore
	current atomic.Pointer[model.PricingConfig]
	logger  *zap.Logger
}

// NewManager creates a manager with no configuration loaded.
func NewManager(store ConfigStore, logger *zap.Logger) *Manager {
	return &Manager{store: store, logger: logging.OrNop(logger)}
}

// FromConfig converts the YAML pricing section into a model configuration.
func FromConfig(c config.PricingConfig) (model.PricingConfig, error) {
	unit, ok := model.ParseBillingUnit(c.Unit)
	if !ok {
		return model.PricingConfig{}, fmt.Errorf("%w: unknown billing unit %q", model.ErrInvalidConfig, c.Unit)
	}
	cfg := model.PricingConfig{
		Unit:      unit,
		UnitPrice: decimal.NewFromFloat(c.UnitPrice),
		Minimum:   decimal.NewFromFloat(c.Minimum),
	}
	if c.Maximum != nil {
		maximum := decimal.NewFromFloat(*c.Maximum)
		cfg.Maximum = &maximum
	}
	return cfg, Validate(cfg)
}

// Load reads the active configuration from the store, seeding fallback when none exists.
func (m *Manager) Load(ctx context.Context, fallback model.PricingConfig) error {
	cfg, err := m.store.ActivePricing(ctx)
	if errors.Is(err, model.ErrNotFound) {
		m.logger.Info("no active pricing found, seeding default", zap.String("unit", string(fallback.Unit)))
		return m.Set(ctx, fallback)
	}
	if err != nil {
		return fmt.Errorf("failed to load pricing: %w", err)
	}
	if err := Validate(*cfg); err != nil {
		return err
	}
	m.current.Store(cfg)
	return nil
}

// Get returns a copy of the active configuration.
func (m *Manager) Get() (model.PricingConfig, error) {
	cfg := m.current.Load()
	if cfg == nil {
		return model.PricingConfig{}, fmt.Errorf("%w: pricing configuration not loaded", model.ErrNotFound)
	}
	return *cfg, nil
}

// Set validates, persists and activates a new configuration.
func (m *Manager) Set(ctx context.Context, cfg model.PricingConfig) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	cfg.ID = 0
	cfg.Active = true
	if cfg.Maximum != nil {
		maximum := *cfg.Maximum
		cfg.Maximum = &maximum
	}
	if err := m.store.ReplacePricing(ctx, &cfg); err != nil {
		return fmt.Errorf("failed to persist pricing: %w", err)
	}
	m.current.Store(&cfg)
	logging.FromContext(ctx, m.logger).Info("pricing updated",
		zap.String("unit", string(cfg.Unit)),
		zap.String("unit_price", cfg.UnitPrice.String()),
		zap.String("minimum", cfg.Minimum.String()),
	)
	return nil
}

// Charge prices elapsedSeconds under the active configuration.
func (m *Manager) Charge(elapsedSeconds int64) (decimal.Decimal, error) {
	cfg, err := m.Get()
	if err != nil {
		return decimal.Zero, err
	}
	return Charge(elapsedSeconds, cfg)
}
