package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BillingUnit is the time granularity used to turn elapsed seconds into billable units.
type BillingUnit string

const (
	PerSecond BillingUnit = "per_second"
	PerMinute BillingUnit = "per_minute"
	PerHour   BillingUnit = "per_hour"
)

// ParseBillingUnit accepts the English names and the Portuguese ones used by older clients.
func ParseBillingUnit(s string) (BillingUnit, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "per_second", "por_segundo":
		return PerSecond, true
	case "per_minute", "por_minuto":
		return PerMinute, true
	case "per_hour", "por_hora":
		return PerHour, true
	}
	return "", false
}

// PricingConfig is a pricing version. Exactly one row is Active at a time.
type PricingConfig struct {
	ID        int64            `gorm:"primaryKey" json:"id"`
	Unit      BillingUnit      `gorm:"size:16;not null" json:"unit"`
	UnitPrice decimal.Decimal  `gorm:"type:decimal;not null" json:"unit_price"`
	Minimum   decimal.Decimal  `gorm:"type:decimal;not null" json:"minimum"`
	Maximum   *decimal.Decimal `gorm:"type:decimal" json:"maximum"`
	Active    bool             `gorm:"index;not null" json:"active"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
