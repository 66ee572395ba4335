package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Payment struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID snowflake.ID    `gorm:"not null" json:"invoice_id"`
	Amount    decimal.Decimal `gorm:"type:numeric;not null" json:"amount"`
	PaidDate  time.Time       `gorm:"not null" json:"paid_date"`
	Method    string          `gorm:"not null" json:"method"`
	Notes     *string         `json:"notes,omitempty"`
	Reference *string         `json:"reference,omitempty"`
	CreatedAt time.Time       `gorm:"not null" json:"created_at"`
}

func (Payment) TableName() string { return "payments" }
