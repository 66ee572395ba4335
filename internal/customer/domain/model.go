package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Customer struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"not null" json:"name"`
	Email     *string      `json:"email,omitempty"`
	IsActive  bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }

// CustomerMerge records that the source customer's history now lives on the
// target. The row is written only after every reassignment has landed.
type CustomerMerge struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	SourceCustomerID snowflake.ID `gorm:"not null" json:"source_customer_id"`
	TargetCustomerID snowflake.ID `gorm:"not null" json:"target_customer_id"`
	MergedAt         time.Time    `gorm:"not null" json:"merged_at"`
	MergedByUserID   *string      `json:"merged_by_user_id,omitempty"`
}

func (CustomerMerge) TableName() string { return "customer_merges" }
