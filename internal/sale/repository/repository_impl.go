package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallhaul/tradeledger/internal/sale/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, sale *domain.Sale) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO sales (id, truck_id, product_id, customer_id, invoice_id, quantity, unit_price,
			discount_type, discount_amount, total_price, sale_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sale.ID,
		sale.TruckID,
		sale.ProductID,
		sale.CustomerID,
		sale.InvoiceID,
		sale.Quantity,
		sale.UnitPrice,
		sale.DiscountType,
		sale.DiscountAmount,
		sale.TotalPrice,
		sale.SaleDate,
		sale.CreatedAt,
		sale.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Sale, error) {
	var sale domain.Sale
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM sales WHERE id = ?`, id,
	).Scan(&sale).Error
	if err != nil {
		return nil, err
	}
	if sale.ID == 0 {
		return nil, nil
	}
	return &sale, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*domain.Sale, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var sales []*domain.Sale
	err := db.WithContext(ctx).
		Model(&domain.Sale{}).
		Where("id IN ?", ids).
		Find(&sales).Error
	if err != nil {
		return nil, err
	}
	return sales, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Sale, error) {
	query := db.WithContext(ctx).Model(&domain.Sale{})
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.TruckID != nil {
		query = query.Where("truck_id = ?", *filter.TruckID)
	}
	if filter.Unbilled {
		query = query.Where("invoice_id IS NULL")
	}

	var sales []*domain.Sale
	err := query.Order("sale_date desc, id desc").Find(&sales).Error
	if err != nil {
		return nil, err
	}
	return sales, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM sales WHERE id = ?`, id).Error
}

func (r *repo) SetInvoice(ctx context.Context, db *gorm.DB, saleID snowflake.ID, invoiceID *snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE sales SET invoice_id = ?, updated_at = ? WHERE id = ?`,
		invoiceID,
		time.Now().UTC(),
		saleID,
	).Error
}

func (r *repo) ClearInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE sales SET invoice_id = NULL, updated_at = ? WHERE invoice_id = ?`,
		time.Now().UTC(),
		invoiceID,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) ReassignCustomer(ctx context.Context, db *gorm.DB, from, to snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE sales SET customer_id = ?, updated_at = ? WHERE customer_id = ?`,
		to,
		time.Now().UTC(),
		from,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) ReassignCustomerForIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID, to snowflake.ID) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`UPDATE sales SET customer_id = ?, updated_at = ? WHERE id IN ?`,
		to,
		time.Now().UTC(),
		ids,
	).Error
}
