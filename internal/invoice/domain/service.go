package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateInvoiceRequest struct {
	CustomerID string
	SaleIDs    []string
	TaxRate    *decimal.Decimal
	DueDate    *time.Time
	Notes      string
}

type IssueRequest struct {
	ID        string
	IssueDate *time.Time
	DueDays   *int
}

type CancelRequest struct {
	ID     string
	Reason string
}

type ListInvoicesRequest struct {
	CustomerID string
	Status     string
}

type InvoiceDetail struct {
	Invoice   Invoice    `json:"invoice"`
	LineItems []LineItem `json:"line_items"`
}

type Service interface {
	CreateFromSales(ctx context.Context, req CreateInvoiceRequest) (InvoiceDetail, error)
	GetByID(ctx context.Context, id string) (InvoiceDetail, error)
	List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error)
	Issue(ctx context.Context, req IssueRequest) (Invoice, error)
	Cancel(ctx context.Context, req CancelRequest) (Invoice, error)
	AddSaleToDraft(ctx context.Context, invoiceID, saleID string) (InvoiceDetail, error)
	RemoveSaleFromDraft(ctx context.Context, invoiceID, saleID string) (InvoiceDetail, error)
}

type ListFilter struct {
	CustomerID *snowflake.ID
	Status     *Status
}

type Totals struct {
	Subtotal    decimal.Decimal
	TaxAmount   decimal.Decimal
	NetTotal    decimal.Decimal
	TotalAmount decimal.Decimal
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Invoice, error)
	UpdateTotals(ctx context.Context, db *gorm.DB, id snowflake.ID, totals Totals) error
	SetStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status) error
	MarkIssued(ctx context.Context, db *gorm.DB, id snowflake.ID, issueDate, dueDate time.Time) error
	ClearIssued(ctx context.Context, db *gorm.DB, id snowflake.ID, dueDate *time.Time) error
	MarkCancelled(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string) error
	RevertCancelled(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status) error
	SetPaymentReceived(ctx context.Context, db *gorm.DB, id snowflake.ID, receivedAt *time.Time) error
	InsertLineItem(ctx context.Context, db *gorm.DB, item *LineItem) error
	DeleteLineItem(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	DeleteLineItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) error
	ListLineItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]LineItem, error)
	UpdateLineSequence(ctx context.Context, db *gorm.DB, id snowflake.ID, sequence int) error
	IDsByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]snowflake.ID, error)
	ReassignCustomer(ctx context.Context, db *gorm.DB, from, to snowflake.ID) (int64, error)
	ReassignCustomerForIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID, to snowflake.ID) error
}

var (
	ErrInvalidCustomer = errors.New("invalid_customer")
	ErrInvalidSale     = errors.New("invalid_sale")
	ErrSaleBilled      = errors.New("sale_already_billed")
	ErrEmptyInvoice    = errors.New("empty_invoice")
	ErrInvalidTaxRate  = errors.New("invalid_tax_rate")
	ErrNotDraft        = errors.New("not_draft")
	ErrInvalidDueDays  = errors.New("invalid_due_days")
	ErrInvalidID       = errors.New("invalid_id")
	ErrNotFound        = errors.New("not_found")
)

// TransitionError reports a status edge the machine does not allow.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid_transition: %s -> %s", e.From, e.To)
}

func NewTransitionError(from, to Status) error {
	return &TransitionError{From: from, To: to}
}
