package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallhaul/tradeledger/internal/customer/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO customers (id, name, email, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		customer.ID,
		customer.Name,
		customer.Email,
		customer.IsActive,
		customer.CreatedAt,
		customer.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, email, is_active, created_at, updated_at
		 FROM customers WHERE id = ?`,
		id,
	).Scan(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]*domain.Customer, error) {
	var customers []*domain.Customer
	err := db.WithContext(ctx).
		Model(&domain.Customer{}).
		Order("created_at desc, id desc").
		Find(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Exec(
		`UPDATE customers SET name = ?, email = ?, updated_at = ? WHERE id = ?`,
		customer.Name,
		customer.Email,
		customer.UpdatedAt,
		customer.ID,
	).Error
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) error {
	return db.WithContext(ctx).Exec(
		`UPDATE customers SET is_active = ?, updated_at = ? WHERE id = ?`,
		active,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) InsertMerge(ctx context.Context, db *gorm.DB, merge *domain.CustomerMerge) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO customer_merges (id, source_customer_id, target_customer_id, merged_at, merged_by_user_id)
		 VALUES (?, ?, ?, ?, ?)`,
		merge.ID,
		merge.SourceCustomerID,
		merge.TargetCustomerID,
		merge.MergedAt,
		merge.MergedByUserID,
	).Error
}

func (r *repo) DeleteMerge(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM customer_merges WHERE id = ?`, id).Error
}

func (r *repo) FindMergeBySource(ctx context.Context, db *gorm.DB, sourceID snowflake.ID) (*domain.CustomerMerge, error) {
	var merge domain.CustomerMerge
	err := db.WithContext(ctx).Raw(
		`SELECT id, source_customer_id, target_customer_id, merged_at, merged_by_user_id
		 FROM customer_merges WHERE source_customer_id = ? ORDER BY merged_at DESC LIMIT 1`,
		sourceID,
	).Scan(&merge).Error
	if err != nil {
		return nil, err
	}
	if merge.ID == 0 {
		return nil, nil
	}
	return &merge, nil
}
