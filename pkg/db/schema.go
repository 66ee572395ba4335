package db

import "gorm.io/gorm"

// Bootstrap creates the persisted shape. Statements are additive only; there is
// no rollback path because the engine cannot drop columns.
func Bootstrap(gdb *gorm.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trucks (
			id BIGINT PRIMARY KEY,
			plate_number TEXT NOT NULL,
			driver_name TEXT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_trucks_plate_number ON trucks(plate_number)`,
		`CREATE TABLE IF NOT EXISTS products (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			unit TEXT NOT NULL,
			unit_price NUMERIC NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS customers (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sales (
			id BIGINT PRIMARY KEY,
			truck_id BIGINT NOT NULL,
			product_id BIGINT NOT NULL,
			customer_id BIGINT,
			invoice_id BIGINT,
			quantity NUMERIC NOT NULL,
			unit_price NUMERIC NOT NULL,
			discount_type TEXT,
			discount_amount NUMERIC NOT NULL DEFAULT 0,
			total_price NUMERIC NOT NULL,
			sale_date TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ix_sales_customer_id ON sales(customer_id)`,
		`CREATE INDEX IF NOT EXISTS ix_sales_invoice_id ON sales(invoice_id)`,
		`CREATE TABLE IF NOT EXISTS invoices (
			id BIGINT PRIMARY KEY,
			invoice_number TEXT NOT NULL,
			customer_id BIGINT NOT NULL,
			subtotal NUMERIC NOT NULL DEFAULT 0,
			tax_rate NUMERIC NOT NULL DEFAULT 0,
			tax_amount NUMERIC NOT NULL DEFAULT 0,
			net_total NUMERIC NOT NULL DEFAULT 0,
			total_amount NUMERIC NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			issue_date TIMESTAMP,
			due_date TIMESTAMP,
			payment_received_date TIMESTAMP,
			cancellation_reason TEXT,
			notes TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_invoices_invoice_number ON invoices(invoice_number)`,
		`CREATE INDEX IF NOT EXISTS ix_invoices_customer_id ON invoices(customer_id)`,
		`CREATE TABLE IF NOT EXISTS invoice_line_items (
			id BIGINT PRIMARY KEY,
			invoice_id BIGINT NOT NULL,
			sale_id BIGINT,
			sequence_number INTEGER NOT NULL,
			quantity NUMERIC NOT NULL,
			unit_price NUMERIC NOT NULL,
			discount_type TEXT,
			discount_amount NUMERIC NOT NULL DEFAULT 0,
			line_total NUMERIC NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ix_invoice_line_items_invoice_id ON invoice_line_items(invoice_id)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id BIGINT PRIMARY KEY,
			invoice_id BIGINT NOT NULL,
			amount NUMERIC NOT NULL,
			paid_date TIMESTAMP NOT NULL,
			method TEXT NOT NULL,
			notes TEXT,
			reference TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ix_payments_invoice_id ON payments(invoice_id)`,
		`CREATE TABLE IF NOT EXISTS invoice_number_sequences (
			id BIGINT PRIMARY KEY,
			year INTEGER NOT NULL,
			month INTEGER NOT NULL,
			last_sequence INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_invoice_number_sequences_period ON invoice_number_sequences(year, month)`,
		`CREATE TABLE IF NOT EXISTS customer_merges (
			id BIGINT PRIMARY KEY,
			source_customer_id BIGINT NOT NULL,
			target_customer_id BIGINT NOT NULL,
			merged_at TIMESTAMP NOT NULL,
			merged_by_user_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS ix_customer_merges_source ON customer_merges(source_customer_id)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id BIGINT PRIMARY KEY,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			action TEXT NOT NULL,
			old_values TEXT,
			new_values TEXT,
			user_id TEXT,
			timestamp TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ix_audit_logs_entity ON audit_logs(entity_type, entity_id)`,
	}

	for _, stmt := range stmts {
		if err := gdb.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
