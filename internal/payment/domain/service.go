package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallhaul/tradeledger/internal/invoice/domain"
	"gorm.io/gorm"
)

type RecordPaymentRequest struct {
	InvoiceID string
	Amount    decimal.Decimal
	Method    string
	PaidDate  *time.Time
	Notes     string
	Reference string
}

type RecordResult struct {
	Payment       Payment         `json:"payment"`
	InvoiceStatus string          `json:"invoice_status"`
	PaidTotal     decimal.Decimal `json:"paid_total"`
	Balance       decimal.Decimal `json:"balance"`
}

type ReverseResult struct {
	InvoiceStatus string          `json:"invoice_status"`
	PaidTotal     decimal.Decimal `json:"paid_total"`
	Balance       decimal.Decimal `json:"balance"`
}

// Summary is the read-side view of one invoice's money position. It is
// assembled from single-statement reads and takes no lock.
type Summary struct {
	Invoice   invoicedomain.Invoice    `json:"invoice"`
	LineItems []invoicedomain.LineItem `json:"line_items"`
	Payments  []Payment                `json:"payments"`
	PaidTotal decimal.Decimal          `json:"paid_total"`
	Balance   decimal.Decimal          `json:"balance"`
}

type Service interface {
	Record(ctx context.Context, req RecordPaymentRequest) (RecordResult, error)
	Reverse(ctx context.Context, paymentID, reason string) (ReverseResult, error)
	Balance(ctx context.Context, invoiceID string) (decimal.Decimal, error)
	SummarizeInvoice(ctx context.Context, invoiceID string) (Summary, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	ListByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]Payment, error)
	SumByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (decimal.Decimal, error)
}

var (
	ErrNotIssued        = errors.New("invoice_not_issued")
	ErrInvoiceCancelled = errors.New("invoice_cancelled")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidMethod    = errors.New("invalid_method")
	ErrOverPayment      = errors.New("over_payment")
	ErrInvalidID        = errors.New("invalid_id")
	ErrNotFound         = errors.New("not_found")
)
