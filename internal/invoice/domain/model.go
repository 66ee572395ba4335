package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusIssued    Status = "ISSUED"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

// transitions holds the allowed edges of the status machine. PAID and
// CANCELLED are terminal here; a payment reversal reopening a PAID invoice
// goes through the reconciler's own repository writes, not this map.
var transitions = map[Status][]Status{
	StatusDraft:  {StatusIssued, StatusCancelled},
	StatusIssued: {StatusPaid, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Invoice struct {
	ID                  snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceNumber       string          `gorm:"uniqueIndex;not null" json:"invoice_number"`
	CustomerID          snowflake.ID    `gorm:"not null" json:"customer_id"`
	Subtotal            decimal.Decimal `gorm:"type:numeric;not null" json:"subtotal"`
	TaxRate             decimal.Decimal `gorm:"type:numeric;not null" json:"tax_rate"`
	TaxAmount           decimal.Decimal `gorm:"type:numeric;not null" json:"tax_amount"`
	NetTotal            decimal.Decimal `gorm:"type:numeric;not null" json:"net_total"`
	TotalAmount         decimal.Decimal `gorm:"type:numeric;not null" json:"total_amount"`
	Status              Status          `gorm:"not null" json:"status"`
	IssueDate           *time.Time      `json:"issue_date,omitempty"`
	DueDate             *time.Time      `json:"due_date,omitempty"`
	PaymentReceivedDate *time.Time      `json:"payment_received_date,omitempty"`
	CancellationReason  *string         `json:"cancellation_reason,omitempty"`
	Notes               *string         `json:"notes,omitempty"`
	CreatedAt           time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"not null" json:"updated_at"`
}

func (Invoice) TableName() string { return "invoices" }

// LineItem is a point-in-time snapshot of a sale. Later edits to the product
// or the sale do not reach back into issued paper.
type LineItem struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID      snowflake.ID    `gorm:"not null" json:"invoice_id"`
	SaleID         *snowflake.ID   `json:"sale_id,omitempty"`
	SequenceNumber int             `gorm:"not null" json:"sequence_number"`
	Quantity       decimal.Decimal `gorm:"type:numeric;not null" json:"quantity"`
	UnitPrice      decimal.Decimal `gorm:"type:numeric;not null" json:"unit_price"`
	DiscountType   *string         `json:"discount_type,omitempty"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric;not null" json:"discount_amount"`
	LineTotal      decimal.Decimal `gorm:"type:numeric;not null" json:"line_total"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
}

func (LineItem) TableName() string { return "invoice_line_items" }
