package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Sale is one delivery of product by a truck. CustomerID is optional until the
// sale is attributed; InvoiceID is set only by the invoicing flow, never here.
type Sale struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	TruckID        snowflake.ID    `gorm:"not null" json:"truck_id"`
	ProductID      snowflake.ID    `gorm:"not null" json:"product_id"`
	CustomerID     *snowflake.ID   `json:"customer_id,omitempty"`
	InvoiceID      *snowflake.ID   `json:"invoice_id,omitempty"`
	Quantity       decimal.Decimal `gorm:"type:numeric;not null" json:"quantity"`
	UnitPrice      decimal.Decimal `gorm:"type:numeric;not null" json:"unit_price"`
	DiscountType   *string         `json:"discount_type,omitempty"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric;not null" json:"discount_amount"`
	TotalPrice     decimal.Decimal `gorm:"type:numeric;not null" json:"total_price"`
	SaleDate       time.Time       `gorm:"not null" json:"sale_date"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null" json:"updated_at"`
}

func (Sale) TableName() string { return "sales" }

const (
	DiscountTypePercent = "percent"
	DiscountTypeAmount  = "amount"
)
