package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallhaul/tradeledger/internal/product/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO products (id, name, unit, unit_price, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		product.ID,
		product.Name,
		product.Unit,
		product.UnitPrice,
		product.IsActive,
		product.CreatedAt,
		product.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Product, error) {
	var product domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, unit, unit_price, is_active, created_at, updated_at
		 FROM products WHERE id = ?`,
		id,
	).Scan(&product).Error
	if err != nil {
		return nil, err
	}
	if product.ID == 0 {
		return nil, nil
	}
	return &product, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]*domain.Product, error) {
	var products []*domain.Product
	err := db.WithContext(ctx).
		Model(&domain.Product{}).
		Order("created_at desc, id desc").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repo) UpdatePrice(ctx context.Context, db *gorm.DB, id snowflake.ID, price decimal.Decimal) error {
	return db.WithContext(ctx).Exec(
		`UPDATE products SET unit_price = ?, updated_at = ? WHERE id = ?`,
		price,
		time.Now().UTC(),
		id,
	).Error
}
