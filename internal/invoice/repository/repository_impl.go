package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallhaul/tradeledger/internal/invoice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoices (id, invoice_number, customer_id, subtotal, tax_rate, tax_amount,
			net_total, total_amount, status, issue_date, due_date, payment_received_date,
			cancellation_reason, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.InvoiceNumber,
		invoice.CustomerID,
		invoice.Subtotal,
		invoice.TaxRate,
		invoice.TaxAmount,
		invoice.NetTotal,
		invoice.TotalAmount,
		invoice.Status,
		invoice.IssueDate,
		invoice.DueDate,
		invoice.PaymentReceivedDate,
		invoice.CancellationReason,
		invoice.Notes,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM invoices WHERE id = ?`, id).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM invoices WHERE id = ?`, id,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Invoice, error) {
	query := db.WithContext(ctx).Model(&domain.Invoice{})
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var invoices []*domain.Invoice
	err := query.Order("created_at desc, id desc").Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) UpdateTotals(ctx context.Context, db *gorm.DB, id snowflake.ID, totals domain.Totals) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET subtotal = ?, tax_amount = ?, net_total = ?, total_amount = ?, updated_at = ?
		 WHERE id = ?`,
		totals.Subtotal,
		totals.TaxAmount,
		totals.NetTotal,
		totals.TotalAmount,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) SetStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) MarkIssued(ctx context.Context, db *gorm.DB, id snowflake.ID, issueDate, dueDate time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET status = ?, issue_date = ?, due_date = ?, updated_at = ? WHERE id = ?`,
		domain.StatusIssued,
		issueDate,
		dueDate,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) ClearIssued(ctx context.Context, db *gorm.DB, id snowflake.ID, dueDate *time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET status = ?, issue_date = NULL, due_date = ?, updated_at = ? WHERE id = ?`,
		domain.StatusDraft,
		dueDate,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) MarkCancelled(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET status = ?, cancellation_reason = ?, updated_at = ? WHERE id = ?`,
		domain.StatusCancelled,
		reason,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) RevertCancelled(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET status = ?, cancellation_reason = NULL, updated_at = ? WHERE id = ?`,
		status,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) SetPaymentReceived(ctx context.Context, db *gorm.DB, id snowflake.ID, receivedAt *time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET payment_received_date = ?, updated_at = ? WHERE id = ?`,
		receivedAt,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) InsertLineItem(ctx context.Context, db *gorm.DB, item *domain.LineItem) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoice_line_items (id, invoice_id, sale_id, sequence_number, quantity,
			unit_price, discount_type, discount_amount, line_total, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.InvoiceID,
		item.SaleID,
		item.SequenceNumber,
		item.Quantity,
		item.UnitPrice,
		item.DiscountType,
		item.DiscountAmount,
		item.LineTotal,
		item.CreatedAt,
	).Error
}

func (r *repo) DeleteLineItem(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM invoice_line_items WHERE id = ?`, id).Error
}

func (r *repo) DeleteLineItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM invoice_line_items WHERE invoice_id = ?`, invoiceID).Error
}

func (r *repo) ListLineItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.LineItem, error) {
	var items []domain.LineItem
	err := db.WithContext(ctx).
		Model(&domain.LineItem{}).
		Where("invoice_id = ?", invoiceID).
		Order("sequence_number asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateLineSequence(ctx context.Context, db *gorm.DB, id snowflake.ID, sequence int) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoice_line_items SET sequence_number = ? WHERE id = ?`,
		sequence,
		id,
	).Error
}

func (r *repo) IDsByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM invoices WHERE customer_id = ?`, customerID,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) ReassignCustomer(ctx context.Context, db *gorm.DB, from, to snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invoices SET customer_id = ?, updated_at = ? WHERE customer_id = ?`,
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
		`UPDATE invoices SET customer_id = ?, updated_at = ? WHERE id IN ?`,
		to,
		time.Now().UTC(),
		ids,
	).Error
}
