package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"parking-status-backend/internal/model"
)

// Validate checks that a pricing configuration is usable.
func Validate(cfg model.PricingConfig) error {
	switch cfg.Unit {
	case model.PerSecond, model.PerMinute, model.PerHour:
	default:
		return fmt.Errorf("%w: unknown billing unit %q", model.ErrInvalidConfig, cfg.Unit)
	}
	if !cfg.UnitPrice.IsPositive() {
		return fmt.Errorf("%w: unit price must be positive, got %s", model.ErrInvalidConfig, cfg.UnitPrice)
	}
	if cfg.Minimum.IsNegative() {
		return fmt.Errorf("%w: minimum charge must not be negative, got %s", model.ErrInvalidConfig, cfg.Minimum)
	}
	if !isCents(cfg.Minimum) {
		return fmt.Errorf("%w: minimum charge must be whole cents, got %s", model.ErrInvalidConfig, cfg.Minimum)
	}
	if cfg.Maximum != nil && !isCents(*cfg.Maximum) {
		return fmt.Errorf("%w: maximum charge must be whole cents, got %s", model.ErrInvalidConfig, *cfg.Maximum)
	}
	if cfg.Maximum != nil && cfg.Minimum.GreaterThan(*cfg.Maximum) {
		return fmt.Errorf("%w: minimum %s exceeds maximum %s", model.ErrInvalidConfig, cfg.Minimum, *cfg.Maximum)
	}
	return nil
}

func isCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// Units converts elapsed seconds into billable units, rounding partial units up.
func Units(elapsedSeconds int64, unit model.BillingUnit) int64 {
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}
	switch unit {
	case model.PerMinute:
		return (elapsedSeconds + 59) / 60
	case model.PerHour:
		return (elapsedSeconds + 3599) / 3600
	default:
		return elapsedSeconds
	}
}

// Charge prices elapsedSeconds under cfg. The result is rounded to cents
// (half away from zero) and then clamped into [Minimum, Maximum].
func Charge(elapsedSeconds int64, cfg model.PricingConfig) (decimal.Decimal, error) {
	if err := Validate(cfg); err != nil {
		return decimal.Zero, err
	}

	charge := decimal.NewFromInt(Units(elapsedSeconds, cfg.Unit)).Mul(cfg.UnitPrice).Round(2)
	if charge.LessThan(cfg.Minimum) {
		charge = cfg.Minimum
	}
	if cfg.Maximum != nil && charge.GreaterThan(*cfg.Maximum) {
		charge = *cfg.Maximum
	}
	return charge, nil
}
