package model

import "time"

// SlotStatus is the sensed state of a parking slot.
type SlotStatus string

const (
	SlotFree     SlotStatus = "free"
	SlotOccupied SlotStatus = "occupied"
	SlotBlocked  SlotStatus = "blocked"
)

// Word returns the status as sent by the slot firmware.
func (s SlotStatus) Word() string {
	switch s {
	case SlotOccupied:
		return "ocupada"
	case SlotBlocked:
		return "bloqueada"
	default:
		return "livre"
	}
}

// SlotState is the live state of a slot (hot table), overwritten on every transition.
type SlotState struct {
	Number    int        `gorm:"primaryKey;autoIncrement:false" json:"number"`
	State     SlotStatus `gorm:"size:16;not null" json:"state"`
	ChangedAt time.Time  `json:"changed_at"`
}

// OccupationRecord is one accepted slot transition (append-only log).
type OccupationRecord struct {
	ID       int64      `gorm:"primaryKey" json:"id"`
	Slot     int        `gorm:"not null;index" json:"slot"`
	Previous SlotStatus `gorm:"size:16;not null" json:"previous"`
	Next     SlotStatus `gorm:"size:16;not null" json:"next"`
	At       time.Time  `gorm:"not null;index" json:"at"`
}

// AccessEvent is one accepted (deduplicated) access signal.
type AccessEvent struct {
	ID int64     `gorm:"primaryKey" json:"id"`
	At time.Time `gorm:"not null;index" json:"at"`
}
