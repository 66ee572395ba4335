package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type AuditLog struct {
	ID         snowflake.ID   `gorm:"primaryKey" json:"id"`
	EntityType string         `gorm:"type:text;not null" json:"entity_type"`
	EntityID   string         `gorm:"type:text;not null;index" json:"entity_id"`
	Action     string         `gorm:"type:text;not null" json:"action"`
	OldValues  datatypes.JSON `json:"old_values,omitempty"`
	NewValues  datatypes.JSON `json:"new_values,omitempty"`
	UserID     *string        `gorm:"type:text" json:"user_id,omitempty"`
	Timestamp  time.Time      `gorm:"not null" json:"timestamp"`
}

func (AuditLog) TableName() string { return "audit_logs" }
