package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	auditrepository "github.com/smallhaul/tradeledger/internal/audit/repository"
	auditservice "github.com/smallhaul/tradeledger/internal/audit/service"
	"github.com/smallhaul/tradeledger/internal/clock"
	"github.com/smallhaul/tradeledger/internal/config"
	"github.com/prometheus/client_golang/prometheus/testutil"
	customerdomain "github.com/smallhaul/tradeledger/internal/customer/domain"
	customerrepository "github.com/smallhaul/tradeledger/internal/customer/repository"
	"github.com/smallhaul/tradeledger/internal/invoice/domain"
	"github.com/smallhaul/tradeledger/internal/invoice/repository"
	"github.com/smallhaul/tradeledger/internal/metrics"
	saledomain "github.com/smallhaul/tradeledger/internal/sale/domain"
	salerepository "github.com/smallhaul/tradeledger/internal/sale/repository"
	sequencerepository "github.com/smallhaul/tradeledger/internal/sequence/repository"
	sequenceservice "github.com/smallhaul/tradeledger/internal/sequence/service"
	"github.com/smallhaul/tradeledger/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fixture struct {
	db        *gorm.DB
	node      *snowflake.Node
	clock     *clock.FakeClock
	svc       domain.Service
	repo      domain.Repository
	sales     saledomain.Repository
	customers customerdomain.Repository
	metrics   *metrics.Metrics
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
	gate := db.NewWriteGate()
	fake := clock.NewFakeClock(time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    gdb,
		Log:   log,
		GenID: node,
		Repo:  auditrepository.Provide(),
	})
	sequenceSvc := sequenceservice.NewService(sequenceservice.Params{
		DB:    gdb,
		Log:   log,
		GenID: node,
		Repo:  sequencerepository.Provide(),
	})

	f := &fixture{
		db:        gdb,
		node:      node,
		clock:     fake,
		repo:      repository.Provide(),
		sales:     salerepository.Provide(),
		customers: customerrepository.Provide(),
		metrics:   metrics.New(),
	}
	f.svc = NewService(Params{
		DB:        gdb,
		Log:       log,
		GenID:     node,
		Gate:      gate,
		Clock:     fake,
		Billing:   config.NewStaticBillingDefaultsHolder(config.DefaultBillingDefaults()),
		Repo:      f.repo,
		Sales:     f.sales,
		Customers: f.customers,
		Sequence:  sequenceSvc,
		Audit:     auditSvc,
		Metrics:   f.metrics,
	})
	return f
}

func (f *fixture) seedCustomer(t *testing.T) customerdomain.Customer {
	t.Helper()
	now := f.clock.Now()
	customer := customerdomain.Customer{
		ID:        f.node.Generate(),
		Name:      "Hauling Co",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.customers.Insert(context.Background(), f.db, &customer))
	return customer
}

func (f *fixture) seedSale(t *testing.T, customerID snowflake.ID, total int64) saledomain.Sale {
	t.Helper()
	now := f.clock.Now()
	amount := decimal.NewFromInt(total)
	sale := saledomain.Sale{
		ID:             f.node.Generate(),
		TruckID:        f.node.Generate(),
		ProductID:      f.node.Generate(),
		CustomerID:     &customerID,
		Quantity:       decimal.NewFromInt(1),
		UnitPrice:      amount,
		DiscountAmount: decimal.Zero,
		TotalPrice:     amount,
		SaleDate:       now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, f.sales.Insert(context.Background(), f.db, &sale))
	return sale
}

func assertCount(t *testing.T, gdb *gorm.DB, query string, want int64, args ...any) {
	t.Helper()
	var n int64
	require.NoError(t, gdb.Raw(query, args...).Scan(&n).Error)
	require.Equal(t, want, n)
}

func taxRate(v int64) *decimal.Decimal {
	rate := decimal.NewFromInt(v)
	return &rate
}

func TestCreateFromSalesComputesTotalsAndLinksSales(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t)
	saleA := f.seedSale(t, customer.ID, 100)
	saleB := f.seedSale(t, customer.ID, 50)

	detail, err := f.svc.CreateFromSales(ctx, domain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		SaleIDs:    []string{saleA.ID.String(), saleB.ID.String()},
		TaxRate:    taxRate(10),
	})
	require.NoError(t, err)

	require.Equal(t, "INV-2025-03-001", detail.Invoice.InvoiceNumber)
	require.Equal(t, domain.StatusDraft, detail.Invoice.Status)
	require.True(t, detail.Invoice.Subtotal.Equal(decimal.NewFromInt(150)), detail.Invoice.Subtotal.String())
	require.True(t, detail.Invoice.TaxAmount.Equal(decimal.NewFromInt(15)), detail.Invoice.TaxAmount.String())
	require.True(t, detail.Invoice.TotalAmount.Equal(decimal.NewFromInt(165)), detail.Invoice.TotalAmount.String())
	require.Len(t, detail.LineItems, 2)
	require.Equal(t, 1, detail.LineItems[0].SequenceNumber)
	require.Equal(t, 2, detail.LineItems[1].SequenceNumber)

	linked, err := f.sales.FindByID(ctx, f.db, saleA.ID)
	require.NoError(t, err)
	require.NotNil(t, linked.InvoiceID)
	require.Equal(t, detail.Invoice.ID, *linked.InvoiceID)

	assertCount(t, f.db, `SELECT COUNT(*) FROM audit_logs WHERE entity_type = 'invoice' AND action = 'create'`, 1)
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.InvoicesCreatedTotal))
}

func TestCreateFromSalesRejectsMissingSaleAndLeavesNothingBehind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t)
	sale := f.seedSale(t, customer.ID, 100)

	_, err := f.svc.CreateFromSales(ctx, domain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		SaleIDs:    []string{sale.ID.String(), f.node.Generate().String()},
	})
	require.ErrorIs(t, err, domain.ErrInvalidSale)

	assertCount(t, f.db, `SELECT COUNT(*) FROM invoices`, 0)
	assertCount(t, f.db, `SELECT COUNT(*) FROM invoice_line_items`, 0)

	unchanged, err := f.sales.FindByID(ctx, f.db, sale.ID)
	require.NoError(t, err)
	require.Nil(t, unchanged.InvoiceID)

	// The failed attempt must not burn a number.
	detail, err := f.svc.CreateFromSales(ctx, domain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		SaleIDs:    []string{sale.ID.String()},
	})
	require.NoError(t, err)
	require.Equal(t, "INV-2025-03-001", detail.Invoice.InvoiceNumber)
}

func TestCreateFromSalesRejectsBilledAndForeignSales(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t)
	other := f.seedCustomer(t)
	sale := f.seedSale(t, customer.ID, 100)

	_, err := f.svc.CreateFromSales(ctx, domain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		SaleIDs:    []string{sale.ID.String()},
	})
	require.NoError(t, err)

	_, err = f.svc.CreateFromSales(ctx, domain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		SaleIDs:    []string{sale.ID.String()},
	})
	require.ErrorIs(t, err, domain.ErrSaleBilled)

	foreign := f.seedSale(t, other.ID, 40)
	_, err = f.svc.CreateFromSales(ctx, domain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		SaleIDs:    []string{foreign.ID.String()},
	})
	require.ErrorIs(t, err, domain.ErrInvalidSale)
}

func TestIssueStampsDatesAndRefusesEmptyDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t)
	sale := f.seedSale(t, customer.ID, 100)

	_, err := f.svc.CreateFromSales(ctx, domain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
	})
	require.ErrorIs(t, err, domain.ErrEmptyInvoice)

	detail, err := f.svc.CreateFromSales(ctx, domain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		SaleIDs:    []string{sale.ID.String()},
	})
	require.NoError(t, err)

	issued, err := f.svc.Issue(ctx, domain.IssueRequest{ID: detail.Invoice.ID.String()})
	require.NoError(t, err)
	require.Equal(t, domain.StatusIssued, issued.Status)
	require.NotNil(t, issued.IssueDate)
	require.NotNil(t, issued.DueDate)
	require.Equal(t, issued.IssueDate.AddDate(0, 0, 30), *issued.DueDate)

	_, err = f.svc.Issue(ctx, domain.IssueRequest{ID: detail.Invoice.ID.String()})
	var transition *domain.TransitionError
	require.ErrorAs(t, err, &transition)
	require.Equal(t, domain.StatusIssued, transition.From)
}

func TestIssueRefusesPaidInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t)
	sale := f.seedSale(t, customer.ID, 100)

	detail, err := f.svc.CreateFromSales(ctx, domain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		SaleIDs:    []string{sale.ID.String()},
	})
	require.NoError(t, err)
	issued, err := f.svc.Issue(ctx, domain.IssueRequest{ID: detail.Invoice.ID.String()})
	require.NoError(t, err)
	require.NoError(t, f.repo.SetStatus(ctx, f.db, detail.Invoice.ID, domain.StatusPaid))

	_, err = f.svc.Issue(ctx, domain.IssueRequest{ID: detail.Invoice.ID.String()})
	var transition *domain.TransitionError
	require.ErrorAs(t, err, &transition)
	require.Equal(t, domain.StatusPaid, transition.From)
	require.Equal(t, domain.StatusIssued, transition.To)

	// The settled paper was not touched.
	got, err := f.svc.GetByID(ctx, detail.Invoice.ID.String())
	require.NoError(t, err)
	require.Equal(t, domain.StatusPaid, got.Invoice.Status)
	require.True(t, got.Invoice.IssueDate.Equal(*issued.IssueDate))
	require.True(t, got.Invoice.DueDate.Equal(*issued.DueDate))
}

func TestIssueRollbackKeepsDraftDueDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t)
	sale := f.seedSale(t, customer.ID, 100)
	due := time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC)

	detail, err := f.svc.CreateFromSales(ctx, domain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		SaleIDs:    []string{sale.ID.String()},
		DueDate:    &due,
	})
	require.NoError(t, err)

	require.NoError(t, f.db.Exec(`DROP TABLE audit_logs`).Error)
	_, err = f.svc.Issue(ctx, domain.IssueRequest{ID: detail.Invoice.ID.String()})
	require.Error(t, err)

	got, err := f.svc.GetByID(ctx, detail.Invoice.ID.String())
	require.NoError(t, err)
	require.Equal(t, domain.StatusDraft, got.Invoice.Status)
	require.Nil(t, got.Invoice.IssueDate)
	require.NotNil(t, got.Invoice.DueDate)
	require.True(t, got.Invoice.DueDate.Equal(due))
}

func TestCancelReleasesSalesAndConsumesTheNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t)
	sale := f.seedSale(t, customer.ID, 100)

	detail, err := f.svc.CreateFromSales(ctx, domain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		SaleIDs:    []string{sale.ID.String()},
	})
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, domain.CancelRequest{
		ID:     detail.Invoice.ID.String(),
		Reason: "duplicate",
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancellationReason)

	released, err := f.sales.FindByID(ctx, f.db, sale.ID)
	require.NoError(t, err)
	require.Nil(t, released.InvoiceID)

	assertCount(t, f.db, `SELECT COUNT(*) FROM invoice_line_items WHERE invoice_id = ?`, 0, detail.Invoice.ID)

	// The cancelled invoice keeps its number; the next one moves on.
	next, err := f.svc.CreateFromSales(ctx, domain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		SaleIDs:    []string{sale.ID.String()},
	})
	require.NoError(t, err)
	require.Equal(t, "INV-2025-03-002", next.Invoice.InvoiceNumber)

	_, err = f.svc.Cancel(ctx, domain.CancelRequest{ID: detail.Invoice.ID.String()})
	var transition *domain.TransitionError
	require.ErrorAs(t, err, &transition)
}

func TestAddAndRemoveSaleRecalculateTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t)
	saleA := f.seedSale(t, customer.ID, 100)
	saleB := f.seedSale(t, customer.ID, 50)

	detail, err := f.svc.CreateFromSales(ctx, domain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		SaleIDs:    []string{saleA.ID.String()},
		TaxRate:    taxRate(10),
	})
	require.NoError(t, err)

	grown, err := f.svc.AddSaleToDraft(ctx, detail.Invoice.ID.String(), saleB.ID.String())
	require.NoError(t, err)
	require.Len(t, grown.LineItems, 2)
	require.True(t, grown.Invoice.TotalAmount.Equal(decimal.NewFromInt(165)), grown.Invoice.TotalAmount.String())

	shrunk, err := f.svc.RemoveSaleFromDraft(ctx, detail.Invoice.ID.String(), saleA.ID.String())
	require.NoError(t, err)
	require.Len(t, shrunk.LineItems, 1)
	require.Equal(t, 1, shrunk.LineItems[0].SequenceNumber)
	require.True(t, shrunk.Invoice.Subtotal.Equal(decimal.NewFromInt(50)), shrunk.Invoice.Subtotal.String())
	require.True(t, shrunk.Invoice.TotalAmount.Equal(decimal.NewFromInt(55)), shrunk.Invoice.TotalAmount.String())

	released, err := f.sales.FindByID(ctx, f.db, saleA.ID)
	require.NoError(t, err)
	require.Nil(t, released.InvoiceID)

	// Draining the draft entirely leaves it un-issuable.
	_, err = f.svc.RemoveSaleFromDraft(ctx, detail.Invoice.ID.String(), saleB.ID.String())
	require.NoError(t, err)
	_, err = f.svc.Issue(ctx, domain.IssueRequest{ID: detail.Invoice.ID.String()})
	require.ErrorIs(t, err, domain.ErrEmptyInvoice)
}

func TestAuditFailureRollsBackCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t)
	sale := f.seedSale(t, customer.ID, 100)

	require.NoError(t, f.db.Exec(`DROP TABLE audit_logs`).Error)

	_, err := f.svc.CreateFromSales(ctx, domain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		SaleIDs:    []string{sale.ID.String()},
	})
	require.Error(t, err)

	assertCount(t, f.db, `SELECT COUNT(*) FROM invoices`, 0)
	assertCount(t, f.db, `SELECT COUNT(*) FROM invoice_line_items`, 0)
	unchanged, err := f.sales.FindByID(ctx, f.db, sale.ID)
	require.NoError(t, err)
	require.Nil(t, unchanged.InvoiceID)
}

func TestDraftEditsRefuseIssuedInvoices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t)
	saleA := f.seedSale(t, customer.ID, 100)
	saleB := f.seedSale(t, customer.ID, 50)

	detail, err := f.svc.CreateFromSales(ctx, domain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		SaleIDs:    []string{saleA.ID.String()},
	})
	require.NoError(t, err)
	_, err = f.svc.Issue(ctx, domain.IssueRequest{ID: detail.Invoice.ID.String()})
	require.NoError(t, err)

	_, err = f.svc.AddSaleToDraft(ctx, detail.Invoice.ID.String(), saleB.ID.String())
	require.ErrorIs(t, err, domain.ErrNotDraft)
	_, err = f.svc.RemoveSaleFromDraft(ctx, detail.Invoice.ID.String(), saleA.ID.String())
	require.ErrorIs(t, err, domain.ErrNotDraft)
}

func TestSnapshotSurvivesSaleEditsAfterIssue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t)
	sale := f.seedSale(t, customer.ID, 100)

	detail, err := f.svc.CreateFromSales(ctx, domain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		SaleIDs:    []string{sale.ID.String()},
	})
	require.NoError(t, err)

	// Mutate the sale row behind the invoice's back.
	require.NoError(t, f.db.Exec(
		`UPDATE sales SET unit_price = 999, total_price = 999 WHERE id = ?`, sale.ID,
	).Error)

	reread, err := f.svc.GetByID(ctx, detail.Invoice.ID.String())
	require.NoError(t, err)
	require.True(t, reread.LineItems[0].UnitPrice.Equal(decimal.NewFromInt(100)))
	require.True(t, reread.Invoice.Subtotal.Equal(decimal.NewFromInt(100)))
}
