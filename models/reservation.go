package models

import "time"

// Reservation status values
const (
	ReservationStatusPending   = "PENDING"
	ReservationStatusConfirmed = "CONFIRMED"
	ReservationStatusCancelled = "CANCELLED"
	ReservationStatusCheckedIn = "CHECKED_IN"
)

type Reservation struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ProfileID   uint       `gorm:"not null;index" json:"profile_id"`
	Profile     User       `gorm:"foreignKey:ProfileID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	PoolTableID uint       `gorm:"not null;index" json:"pool_table_id"`
	PoolTable   PoolTable  `gorm:"foreignKey:PoolTableID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	StartTime   time.Time  `gorm:"not null;index" json:"start_time"`
	Status      string     `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	AmountCents int64      `gorm:"not null;default:0" json:"amount_cents"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}
