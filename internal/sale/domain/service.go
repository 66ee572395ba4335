package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateSaleRequest struct {
	TruckID       string
	ProductID     string
	CustomerID    string
	Quantity      decimal.Decimal
	UnitPrice     *decimal.Decimal
	DiscountType  string
	DiscountValue decimal.Decimal
	SaleDate      *time.Time
}

type ListSalesRequest struct {
	CustomerID string
	TruckID    string
	Unbilled   bool
}

type Service interface {
	Create(ctx context.Context, req CreateSaleRequest) (Sale, error)
	GetByID(ctx context.Context, id string) (Sale, error)
	List(ctx context.Context, req ListSalesRequest) ([]Sale, error)
}

type ListFilter struct {
	CustomerID *snowflake.ID
	TruckID    *snowflake.ID
	Unbilled   bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sale *Sale) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Sale, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*Sale, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Sale, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	SetInvoice(ctx context.Context, db *gorm.DB, saleID snowflake.ID, invoiceID *snowflake.ID) error
	ClearInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (int64, error)
	ReassignCustomer(ctx context.Context, db *gorm.DB, from, to snowflake.ID) (int64, error)
	ReassignCustomerForIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID, to snowflake.ID) error
}

var (
	ErrInvalidTruck    = errors.New("invalid_truck")
	ErrInvalidProduct  = errors.New("invalid_product")
	ErrInvalidCustomer = errors.New("invalid_customer")
	ErrInvalidQuantity = errors.New("invalid_quantity")
	ErrInvalidDiscount = errors.New("invalid_discount")
	ErrInvalidID       = errors.New("invalid_id")
	ErrNotFound        = errors.New("not_found")
)
