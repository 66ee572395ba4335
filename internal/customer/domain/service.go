package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreateCustomerRequest struct {
	Name  string
	Email string
}

type UpdateCustomerRequest struct {
	ID    string
	Name  string
	Email string
}

type MergeRequest struct {
	SourceID string
	TargetID string
}

type MergeResult struct {
	Merge          CustomerMerge `json:"merge"`
	SalesMoved     int64         `json:"sales_moved"`
	InvoicesMoved  int64         `json:"invoices_moved"`
	TargetCustomer Customer      `json:"target_customer"`
}

type Service interface {
	Create(ctx context.Context, req CreateCustomerRequest) (Customer, error)
	GetByID(ctx context.Context, id string) (Customer, error)
	List(ctx context.Context) ([]Customer, error)
	Update(ctx context.Context, req UpdateCustomerRequest) (Customer, error)
	Deactivate(ctx context.Context, id string) error
	Merge(ctx context.Context, req MergeRequest) (MergeResult, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Customer, error)
	List(ctx context.Context, db *gorm.DB) ([]*Customer, error)
	Update(ctx context.Context, db *gorm.DB, customer *Customer) error
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) error
	InsertMerge(ctx context.Context, db *gorm.DB, merge *CustomerMerge) error
	DeleteMerge(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindMergeBySource(ctx context.Context, db *gorm.DB, sourceID snowflake.ID) (*CustomerMerge, error)
}

var (
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidID      = errors.New("invalid_id")
	ErrNotFound       = errors.New("not_found")
	ErrSelfMerge      = errors.New("self_merge")
	ErrAlreadyMerged  = errors.New("already_merged")
	ErrInactiveTarget = errors.New("inactive_target")
	ErrInactiveSource = errors.New("inactive_source")
)
