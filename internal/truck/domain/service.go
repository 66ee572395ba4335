package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreateTruckRequest struct {
	PlateNumber string
	DriverName  string
}

type Service interface {
	Create(ctx context.Context, req CreateTruckRequest) (Truck, error)
	GetByID(ctx context.Context, id string) (Truck, error)
	List(ctx context.Context) ([]Truck, error)
	Deactivate(ctx context.Context, id string) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, truck *Truck) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Truck, error)
	List(ctx context.Context, db *gorm.DB) ([]*Truck, error)
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) error
}

var (
	ErrInvalidPlateNumber = errors.New("invalid_plate_number")
	ErrDuplicatePlate     = errors.New("duplicate_plate_number")
	ErrInvalidID          = errors.New("invalid_id")
	ErrNotFound           = errors.New("not_found")
)
