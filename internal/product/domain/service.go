package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateProductRequest struct {
	Name      string
	Unit      string
	UnitPrice decimal.Decimal
}

type UpdatePriceRequest struct {
	ID        string
	UnitPrice decimal.Decimal
}

// Service manages the product catalog. Price changes never touch historical
// invoice line items; those are point-in-time snapshots.
type Service interface {
	Create(ctx context.Context, req CreateProductRequest) (Product, error)
	GetByID(ctx context.Context, id string) (Product, error)
	List(ctx context.Context) ([]Product, error)
	UpdatePrice(ctx context.Context, req UpdatePriceRequest) (Product, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, product *Product) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Product, error)
	List(ctx context.Context, db *gorm.DB) ([]*Product, error)
	UpdatePrice(ctx context.Context, db *gorm.DB, id snowflake.ID, price decimal.Decimal) error
}

var (
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidUnit  = errors.New("invalid_unit")
	ErrInvalidPrice = errors.New("invalid_price")
	ErrInvalidID    = errors.New("invalid_id")
	ErrNotFound     = errors.New("not_found")
)
