package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	auditrepository "github.com/smallhaul/tradeledger/internal/audit/repository"
	auditservice "github.com/smallhaul/tradeledger/internal/audit/service"
	"github.com/smallhaul/tradeledger/internal/clock"
	"github.com/smallhaul/tradeledger/internal/config"
	invoicedomain "github.com/smallhaul/tradeledger/internal/invoice/domain"
	invoicerepository "github.com/smallhaul/tradeledger/internal/invoice/repository"
	"github.com/smallhaul/tradeledger/internal/metrics"
	"github.com/smallhaul/tradeledger/internal/payment/domain"
	"github.com/smallhaul/tradeledger/internal/payment/repository"
	"github.com/smallhaul/tradeledger/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	svc      domain.Service
	invoices invoicedomain.Repository
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Bootstrap(gdb))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()
	fake := clock.NewFakeClock(time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC))

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    gdb,
		Log:   log,
		GenID: node,
		Repo:  auditrepository.Provide(),
	})

	f := &fixture{
		db:       gdb,
		node:     node,
		clock:    fake,
		invoices: invoicerepository.Provide(),
		metrics:  metrics.New(),
	}
	f.svc = NewService(Params{
		DB:       gdb,
		Log:      log,
		GenID:    node,
		Gate:     db.NewWriteGate(),
		Clock:    fake,
		Billing:  config.NewStaticBillingDefaultsHolder(config.DefaultBillingDefaults()),
		Repo:     repository.Provide(),
		Invoices: f.invoices,
		Audit:    auditSvc,
		Metrics:  f.metrics,
	})
	return f
}

func (f *fixture) seedInvoice(t *testing.T, status invoicedomain.Status, total int64) invoicedomain.Invoice {
	t.Helper()
	now := f.clock.Now()
	amount := decimal.NewFromInt(total)
	id := f.node.Generate()
	invoice := invoicedomain.Invoice{
		ID:            id,
		InvoiceNumber: "INV-2025-03-" + id.String(),
		CustomerID:    f.node.Generate(),
		Subtotal:      amount,
		TaxRate:       decimal.Zero,
		TaxAmount:     decimal.Zero,
		NetTotal:      amount,
		TotalAmount:   amount,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if status != invoicedomain.StatusDraft {
		invoice.IssueDate = &now
	}
	require.NoError(t, f.invoices.Insert(context.Background(), f.db, &invoice))
	return invoice
}

func record(f *fixture, invoiceID snowflake.ID, amount int64) (domain.RecordResult, error) {
	return f.svc.Record(context.Background(), domain.RecordPaymentRequest{
		InvoiceID: invoiceID.String(),
		Amount:    decimal.NewFromInt(amount),
		Method:    "cash",
	})
}

func TestRecordPartialThenFullMarksPaid(t *testing.T) {
	f := newFixture(t)
	invoice := f.seedInvoice(t, invoicedomain.StatusIssued, 165)

	partial, err := record(f, invoice.ID, 100)
	require.NoError(t, err)
	require.Equal(t, string(invoicedomain.StatusIssued), partial.InvoiceStatus)
	require.True(t, partial.Balance.Equal(decimal.NewFromInt(65)), partial.Balance.String())

	full, err := record(f, invoice.ID, 65)
	require.NoError(t, err)
	require.Equal(t, string(invoicedomain.StatusPaid), full.InvoiceStatus)
	require.True(t, full.Balance.IsZero())

	stored, err := f.invoices.FindByID(context.Background(), f.db, invoice.ID)
	require.NoError(t, err)
	require.Equal(t, invoicedomain.StatusPaid, stored.Status)
	require.NotNil(t, stored.PaymentReceivedDate)
	require.Equal(t, float64(2), testutil.ToFloat64(f.metrics.PaymentsRecordedTotal))
}

func TestRecordRefusesOverPaymentAndWritesNothing(t *testing.T) {
	f := newFixture(t)
	invoice := f.seedInvoice(t, invoicedomain.StatusIssued, 165)

	_, err := record(f, invoice.ID, 100)
	require.NoError(t, err)

	_, err = record(f, invoice.ID, 70)
	require.ErrorIs(t, err, domain.ErrOverPayment)

	var n int64
	require.NoError(t, f.db.Raw(
		`SELECT COUNT(*) FROM payments WHERE invoice_id = ?`, invoice.ID,
	).Scan(&n).Error)
	require.Equal(t, int64(1), n)

	stored, err := f.invoices.FindByID(context.Background(), f.db, invoice.ID)
	require.NoError(t, err)
	require.Equal(t, invoicedomain.StatusIssued, stored.Status)
}

func TestRecordToleratesCentRounding(t *testing.T) {
	f := newFixture(t)
	invoice := f.seedInvoice(t, invoicedomain.StatusIssued, 165)

	result, err := f.svc.Record(context.Background(), domain.RecordPaymentRequest{
		InvoiceID: invoice.ID.String(),
		Amount:    decimal.RequireFromString("165.01"),
		Method:    "transfer",
	})
	require.NoError(t, err)
	require.Equal(t, string(invoicedomain.StatusPaid), result.InvoiceStatus)
}

func TestRecordGuards(t *testing.T) {
	f := newFixture(t)
	draft := f.seedInvoice(t, invoicedomain.StatusDraft, 100)

	_, err := record(f, draft.ID, 50)
	require.ErrorIs(t, err, domain.ErrNotIssued)

	cancelled := f.seedInvoice(t, invoicedomain.StatusCancelled, 100)
	_, err = record(f, cancelled.ID, 50)
	require.ErrorIs(t, err, domain.ErrInvoiceCancelled)

	issued := f.seedInvoice(t, invoicedomain.StatusIssued, 100)

	_, err = f.svc.Record(context.Background(), domain.RecordPaymentRequest{
		InvoiceID: issued.ID.String(),
		Amount:    decimal.Zero,
		Method:    "cash",
	})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.Record(context.Background(), domain.RecordPaymentRequest{
		InvoiceID: issued.ID.String(),
		Amount:    decimal.NewFromInt(10),
		Method:    "barter",
	})
	require.ErrorIs(t, err, domain.ErrInvalidMethod)

	_, err = f.svc.Record(context.Background(), domain.RecordPaymentRequest{
		InvoiceID: f.node.Generate().String(),
		Amount:    decimal.NewFromInt(10),
		Method:    "cash",
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReverseReopensPaidInvoice(t *testing.T) {
	f := newFixture(t)
	invoice := f.seedInvoice(t, invoicedomain.StatusIssued, 165)

	_, err := record(f, invoice.ID, 100)
	require.NoError(t, err)
	full, err := record(f, invoice.ID, 65)
	require.NoError(t, err)
	require.Equal(t, string(invoicedomain.StatusPaid), full.InvoiceStatus)

	result, err := f.svc.Reverse(context.Background(), full.Payment.ID.String(), "bounced check")
	require.NoError(t, err)
	require.Equal(t, string(invoicedomain.StatusIssued), result.InvoiceStatus)
	require.True(t, result.Balance.Equal(decimal.NewFromInt(65)), result.Balance.String())

	stored, err := f.invoices.FindByID(context.Background(), f.db, invoice.ID)
	require.NoError(t, err)
	require.Equal(t, invoicedomain.StatusIssued, stored.Status)
	require.Nil(t, stored.PaymentReceivedDate)

	_, err = f.svc.Reverse(context.Background(), full.Payment.ID.String(), "")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBalanceAndSummary(t *testing.T) {
	f := newFixture(t)
	invoice := f.seedInvoice(t, invoicedomain.StatusIssued, 165)

	_, err := record(f, invoice.ID, 40)
	require.NoError(t, err)

	balance, err := f.svc.Balance(context.Background(), invoice.ID.String())
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.NewFromInt(125)), balance.String())

	summary, err := f.svc.SummarizeInvoice(context.Background(), invoice.ID.String())
	require.NoError(t, err)
	require.Len(t, summary.Payments, 1)
	require.True(t, summary.PaidTotal.Equal(decimal.NewFromInt(40)))
	require.True(t, summary.Balance.Equal(decimal.NewFromInt(125)))
}
