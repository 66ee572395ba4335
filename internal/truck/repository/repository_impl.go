package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallhaul/tradeledger/internal/truck/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, truck *domain.Truck) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO trucks (id, plate_number, driver_name, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		truck.ID,
		truck.PlateNumber,
		truck.DriverName,
		truck.IsActive,
		truck.CreatedAt,
		truck.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Truck, error) {
	var truck domain.Truck
	err := db.WithContext(ctx).Raw(
		`SELECT id, plate_number, driver_name, is_active, created_at, updated_at
		 FROM trucks WHERE id = ?`,
		id,
	).Scan(&truck).Error
	if err != nil {
		return nil, err
	}
	if truck.ID == 0 {
		return nil, nil
	}
	return &truck, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]*domain.Truck, error) {
	var trucks []*domain.Truck
	err := db.WithContext(ctx).
		Model(&domain.Truck{}).
		Order("created_at desc, id desc").
		Find(&trucks).Error
	if err != nil {
		return nil, err
	}
	return trucks, nil
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) error {
	return db.WithContext(ctx).Exec(
		`UPDATE trucks SET is_active = ?, updated_at = ? WHERE id = ?`,
		active,
		time.Now().UTC(),
		id,
	).Error
}
