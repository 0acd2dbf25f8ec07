package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SessionState is the lifecycle state of a vehicle session.
type SessionState string

const (
	SessionActive          SessionState = "active"
	SessionAwaitingPayment SessionState = "awaiting_payment"
	SessionPaid            SessionState = "paid"
)

// VehicleSession is one stay of a vehicle, keyed by the code read at the gate.
// ElapsedSeconds and Charge stay nil while the session is active. A record
// superseded by re-entry is soft-deleted so its ID is never handed out again.
type VehicleSession struct {
	ID             int64            `gorm:"primaryKey" json:"id"`
	GateCode       string           `gorm:"size:128;index;not null" json:"qr_code"`
	EntryAt        time.Time        `gorm:"not null" json:"entry_at"`
	ExitAt         *time.Time       `json:"exit_at"`
	ElapsedSeconds *int64           `json:"elapsed_seconds"`
	Charge         *decimal.Decimal `gorm:"type:decimal" json:"charge"`
	PaidAmount     *decimal.Decimal `gorm:"type:decimal" json:"amount_paid"`
	PaymentMethod  string           `gorm:"size:32" json:"payment_method,omitempty"`
	State          SessionState     `gorm:"size:32;index;not null" json:"status"`
	PaidAt         *time.Time       `json:"paid_at"`
	CreatedAt      time.Time        `gorm:"not null" json:"created_at"`
	DeletedAt      gorm.DeletedAt   `gorm:"index" json:"-"`
}

// SessionStats holds the counts the dashboard needs for one day.
type SessionStats struct {
	Active           int64
	AwaitingPayment  int64
	EntriesToday     int64
	ExitsToday       int64
	StaySecondsToday int64 // sum of ElapsedSeconds over ExitsToday
	RevenueToday     decimal.Decimal
}
