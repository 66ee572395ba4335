package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Truck struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	PlateNumber string       `gorm:"not null;uniqueIndex" json:"plate_number"`
	DriverName  string       `json:"driver_name,omitempty"`
	IsActive    bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

func (Truck) TableName() string { return "trucks" }
