package models

import "time"

// Table status values
const (
	TableStatusAvailable = "available"
	TableStatusOccupied  = "occupied"
	TableStatusDirty     = "dirty"
)

type PoolTable struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Label  string `gorm:"type:varchar(50);not null;uniqueIndex" json:"label"`
	Status string `gorm:"type:varchar(20);not null;default:'available'" json:"status"`
	// HourlyRate in minor units; zero means the table is not billed by time.
	HourlyRate int64     `gorm:"not null;default:0" json:"hourly_rate"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (PoolTable) TableName() string { return "pool_tables" }

// BillsTableTime reports whether sessions on this table accrue a table-time charge.
func (t PoolTable) BillsTableTime() bool {
	return t.HourlyRate > 0
}
