package models

import (
	"time"

	"gorm.io/datatypes"
)

type AuditLog struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	ActionType string         `gorm:"type:varchar(50);not null;index" json:"action_type"`
	EntityType *string        `gorm:"type:varchar(50)" json:"entity_type,omitempty"`
	EntityID   *string        `gorm:"type:varchar(50)" json:"entity_id,omitempty"`
	ActorID    *uint          `json:"actor_id,omitempty"`
	Details    datatypes.JSON `json:"details,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;index" json:"created_at"`
}
