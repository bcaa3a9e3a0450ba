package models

import "time"

// Table session status values
const (
	SessionStatusOpen     = "OPEN"
	SessionStatusPaused   = "PAUSED"
	SessionStatusReleased = "RELEASED"
)

// TableSession is one continuous occupation of a pool table.
type TableSession struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	TableID uint      `gorm:"not null;index" json:"table_id"`
	Table   PoolTable `gorm:"foreignKey:TableID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"table"`
	// ActiveTableID mirrors TableID while the session is OPEN or PAUSED and is
	// NULL afterwards; the unique index keeps one active session per table.
	ActiveTableID *uint      `gorm:"uniqueIndex" json:"-"`
	CustomerName  string     `gorm:"type:varchar(255)" json:"customer_name"`
	Status        string     `gorm:"type:varchar(20);not null;default:'OPEN';index" json:"status"`
	OpenedAt      time.Time  `gorm:"not null" json:"opened_at"`
	PausedAt      *time.Time `json:"paused_at,omitempty"`
	PausedSeconds int64      `gorm:"not null;default:0" json:"paused_seconds"`
	ReleasedAt    *time.Time `json:"released_at,omitempty"`
	OpenedBy      *uint      `json:"opened_by,omitempty"`
	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null" json:"updated_at"`
	Orders        []Order    `gorm:"foreignKey:TableSessionID" json:"orders,omitempty"`
}

// IsActive reports whether the session still occupies its table.
func (s *TableSession) IsActive() bool {
	return s.Status == SessionStatusOpen || s.Status == SessionStatusPaused
}

// BillableDuration is the time the table was in play up to at, excluding pauses.
func (s *TableSession) BillableDuration(at time.Time) time.Duration {
	end := at
	if s.ReleasedAt != nil {
		end = *s.ReleasedAt
	}
	paused := time.Duration(s.PausedSeconds) * time.Second
	if s.Status == SessionStatusPaused && s.PausedAt != nil {
		paused += end.Sub(*s.PausedAt)
	}
	d := end.Sub(s.OpenedAt) - paused
	if d < 0 {
		return 0
	}
	return d
}
