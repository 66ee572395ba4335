package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallhaul/tradeledger/internal/audit/domain"
	"github.com/smallhaul/tradeledger/internal/clock"
	"github.com/smallhaul/tradeledger/internal/config"
	customerdomain "github.com/smallhaul/tradeledger/internal/customer/domain"
	"github.com/smallhaul/tradeledger/internal/invoice/domain"
	"github.com/smallhaul/tradeledger/internal/metrics"
	saledomain "github.com/smallhaul/tradeledger/internal/sale/domain"
	sequencedomain "github.com/smallhaul/tradeledger/internal/sequence/domain"
	"github.com/smallhaul/tradeledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Gate      *db.WriteGate
	Clock     clock.Clock
	Billing   *config.BillingDefaultsHolder
	Repo      domain.Repository
	Sales     saledomain.Repository
	Customers customerdomain.Repository
	Sequence  sequencedomain.Service
	Audit     auditdomain.Service
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	gate      *db.WriteGate
	clock     clock.Clock
	billing   *config.BillingDefaultsHolder
	repo      domain.Repository
	sales     saledomain.Repository
	customers customerdomain.Repository
	sequence  sequencedomain.Service
	audit     auditdomain.Service
	metrics   *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("invoice.service"),
		genID:     p.GenID,
		gate:      p.Gate,
		clock:     p.Clock,
		billing:   p.Billing,
		repo:      p.Repo,
		sales:     p.Sales,
		customers: p.Customers,
		sequence:  p.Sequence,
		audit:     p.Audit,
		metrics:   p.Metrics,
	}
}

// CreateFromSales opens a draft over the given unbilled sales. The invoice
// number is taken from the monthly sequence at creation time and stays with
// the invoice for good, cancelled or not.
func (s *Service) CreateFromSales(ctx context.Context, req domain.CreateInvoiceRequest) (domain.InvoiceDetail, error) {
	customerID, err := parseID(req.CustomerID)
	if err != nil {
		return domain.InvoiceDetail{}, domain.ErrInvalidCustomer
	}
	customer, err := s.customers.FindByID(ctx, s.db, customerID)
	if err != nil {
		return domain.InvoiceDetail{}, err
	}
	if customer == nil || !customer.IsActive {
		return domain.InvoiceDetail{}, domain.ErrInvalidCustomer
	}

	taxRate, err := s.resolveTaxRate(req.TaxRate)
	if err != nil {
		return domain.InvoiceDetail{}, err
	}

	saleIDs, err := parseSaleIDs(req.SaleIDs)
	if err != nil {
		return domain.InvoiceDetail{}, err
	}
	if len(saleIDs) == 0 {
		return domain.InvoiceDetail{}, domain.ErrEmptyInvoice
	}

	var detail domain.InvoiceDetail
	err = s.gate.Do(func() error {
		sales, err := s.loadBillableSales(ctx, saleIDs, customerID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		period := sequencedomain.Period{Year: now.Year(), Month: int(now.Month())}
		number, seq, err := s.sequence.Next(ctx, period)
		if err != nil {
			return err
		}

		comp := db.NewCompensations()
		comp.Add(func() error {
			return s.sequence.Release(ctx, period, seq)
		})

		invoice := domain.Invoice{
			ID:            s.genID.Generate(),
			InvoiceNumber: number,
			CustomerID:    customerID,
			TaxRate:       taxRate,
			Status:        domain.StatusDraft,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if notes := strings.TrimSpace(req.Notes); notes != "" {
			invoice.Notes = &notes
		}
		if req.DueDate != nil {
			due := req.DueDate.UTC()
			invoice.DueDate = &due
		}

		items := make([]domain.LineItem, 0, len(sales))
		for i, sale := range sales {
			item := snapshotLine(sale, &invoice, i+1)
			item.ID = s.genID.Generate()
			item.CreatedAt = now
			items = append(items, item)
		}
		totals := computeTotals(items, taxRate)
		applyTotals(&invoice, totals)

		if err := s.repo.Insert(ctx, s.db, &invoice); err != nil {
			comp.Revert(s.log)
			return err
		}
		comp.Add(func() error {
			return s.repo.Delete(ctx, s.db, invoice.ID)
		})

		for i := range items {
			item := &items[i]
			if err := s.repo.InsertLineItem(ctx, s.db, item); err != nil {
				comp.Revert(s.log)
				return err
			}
			itemID := item.ID
			comp.Add(func() error {
				return s.repo.DeleteLineItem(ctx, s.db, itemID)
			})

			saleID := *item.SaleID
			if err := s.sales.SetInvoice(ctx, s.db, saleID, &invoice.ID); err != nil {
				comp.Revert(s.log)
				return err
			}
			comp.Add(func() error {
				return s.sales.SetInvoice(ctx, s.db, saleID, nil)
			})
		}

		_, err = s.audit.Append(ctx, auditdomain.Entry{
			EntityType: "invoice",
			EntityID:   invoice.ID.String(),
			Action:     "create",
			NewValues: map[string]any{
				"invoice_number": invoice.InvoiceNumber,
				"customer_id":    customerID.String(),
				"line_items":     len(items),
				"total_amount":   invoice.TotalAmount.String(),
			},
		})
		if err != nil {
			comp.Revert(s.log)
			return err
		}

		comp.Discard()
		detail = domain.InvoiceDetail{Invoice: invoice, LineItems: items}
		return nil
	})
	if err != nil {
		return domain.InvoiceDetail{}, err
	}

	if s.metrics != nil {
		s.metrics.InvoicesCreatedTotal.Inc()
	}
	s.log.Info("invoice drafted",
		zap.String("invoice_number", detail.Invoice.InvoiceNumber),
		zap.String("customer_id", customerID.String()),
		zap.Int("line_items", len(detail.LineItems)),
	)
	return detail, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.InvoiceDetail, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return domain.InvoiceDetail{}, err
	}
	invoice, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return domain.InvoiceDetail{}, err
	}
	if invoice == nil {
		return domain.InvoiceDetail{}, domain.ErrNotFound
	}
	items, err := s.repo.ListLineItems(ctx, s.db, invoiceID)
	if err != nil {
		return domain.InvoiceDetail{}, err
	}
	return domain.InvoiceDetail{Invoice: *invoice, LineItems: items}, nil
}

func (s *Service) List(ctx context.Context, req domain.ListInvoicesRequest) ([]domain.Invoice, error) {
	var filter domain.ListFilter
	if strings.TrimSpace(req.CustomerID) != "" {
		id, err := parseID(req.CustomerID)
		if err != nil {
			return nil, domain.ErrInvalidCustomer
		}
		filter.CustomerID = &id
	}
	if status := strings.TrimSpace(strings.ToUpper(req.Status)); status != "" {
		st := domain.Status(status)
		switch st {
		case domain.StatusDraft, domain.StatusIssued, domain.StatusPaid, domain.StatusCancelled:
			filter.Status = &st
		default:
			return nil, domain.ErrNotFound
		}
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}
	return invoices, nil
}

// Issue moves a draft to ISSUED, stamping issue and due dates. An empty draft
// cannot be issued.
func (s *Service) Issue(ctx context.Context, req domain.IssueRequest) (domain.Invoice, error) {
	invoiceID, err := parseID(req.ID)
	if err != nil {
		return domain.Invoice{}, err
	}

	var issued domain.Invoice
	err = s.gate.Do(func() error {
		invoice, err := s.repo.FindByID(ctx, s.db, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrNotFound
		}
		if !domain.CanTransition(invoice.Status, domain.StatusIssued) {
			return domain.NewTransitionError(invoice.Status, domain.StatusIssued)
		}

		items, err := s.repo.ListLineItems(ctx, s.db, invoiceID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return domain.ErrEmptyInvoice
		}

		issueDate := s.clock.Now()
		if req.IssueDate != nil {
			issueDate = req.IssueDate.UTC()
		}
		var dueDate time.Time
		switch {
		case req.DueDays != nil:
			if *req.DueDays < 0 {
				return domain.ErrInvalidDueDays
			}
			dueDate = issueDate.AddDate(0, 0, *req.DueDays)
		case invoice.DueDate != nil:
			// A due date fixed at draft time wins over the default.
			dueDate = *invoice.DueDate
		default:
			dueDate = issueDate.AddDate(0, 0, s.billing.Get().DueDays)
		}

		if err := s.repo.MarkIssued(ctx, s.db, invoiceID, issueDate, dueDate); err != nil {
			return err
		}

		_, err = s.audit.Append(ctx, auditdomain.Entry{
			EntityType: "invoice",
			EntityID:   invoiceID.String(),
			Action:     "issue",
			OldValues:  map[string]any{"status": string(invoice.Status)},
			NewValues: map[string]any{
				"status":     string(domain.StatusIssued),
				"issue_date": issueDate.Format(time.RFC3339),
				"due_date":   dueDate.Format(time.RFC3339),
			},
		})
		if err != nil {
			if revErr := s.repo.ClearIssued(ctx, s.db, invoiceID, invoice.DueDate); revErr != nil {
				s.log.Error("failed to revert issue", zap.String("invoice_id", invoiceID.String()), zap.Error(revErr))
			}
			return err
		}

		invoice.Status = domain.StatusIssued
		invoice.IssueDate = &issueDate
		invoice.DueDate = &dueDate
		issued = *invoice
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.log.Info("invoice issued",
		zap.String("invoice_number", issued.InvoiceNumber),
		zap.String("invoice_id", invoiceID.String()),
	)
	return issued, nil
}

// Cancel releases the invoice's sales back to the unbilled pool and drops its
// line items. The invoice number stays consumed.
func (s *Service) Cancel(ctx context.Context, req domain.CancelRequest) (domain.Invoice, error) {
	invoiceID, err := parseID(req.ID)
	if err != nil {
		return domain.Invoice{}, err
	}
	reason := strings.TrimSpace(req.Reason)

	var cancelled domain.Invoice
	err = s.gate.Do(func() error {
		invoice, err := s.repo.FindByID(ctx, s.db, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrNotFound
		}
		if !domain.CanTransition(invoice.Status, domain.StatusCancelled) {
			return domain.NewTransitionError(invoice.Status, domain.StatusCancelled)
		}
		prevStatus := invoice.Status

		items, err := s.repo.ListLineItems(ctx, s.db, invoiceID)
		if err != nil {
			return err
		}
		linked := make([]snowflake.ID, 0, len(items))
		for _, item := range items {
			if item.SaleID != nil {
				linked = append(linked, *item.SaleID)
			}
		}

		comp := db.NewCompensations()

		unlinked, err := s.sales.ClearInvoice(ctx, s.db, invoiceID)
		if err != nil {
			return err
		}
		comp.Add(func() error {
			for _, saleID := range linked {
				if err := s.sales.SetInvoice(ctx, s.db, saleID, &invoiceID); err != nil {
					return err
				}
			}
			return nil
		})

		saved := make([]domain.LineItem, len(items))
		copy(saved, items)
		if err := s.repo.DeleteLineItems(ctx, s.db, invoiceID); err != nil {
			comp.Revert(s.log)
			return err
		}
		comp.Add(func() error {
			for i := range saved {
				if err := s.repo.InsertLineItem(ctx, s.db, &saved[i]); err != nil {
					return err
				}
			}
			return nil
		})

		if err := s.repo.MarkCancelled(ctx, s.db, invoiceID, reason); err != nil {
			comp.Revert(s.log)
			return err
		}
		comp.Add(func() error {
			return s.repo.RevertCancelled(ctx, s.db, invoiceID, prevStatus)
		})

		_, err = s.audit.Append(ctx, auditdomain.Entry{
			EntityType: "invoice",
			EntityID:   invoiceID.String(),
			Action:     "cancel",
			OldValues:  map[string]any{"status": string(prevStatus)},
			NewValues: map[string]any{
				"status":         string(domain.StatusCancelled),
				"reason":         reason,
				"sales_unlinked": unlinked,
			},
		})
		if err != nil {
			comp.Revert(s.log)
			return err
		}

		comp.Discard()
		invoice.Status = domain.StatusCancelled
		if reason != "" {
			invoice.CancellationReason = &reason
		}
		cancelled = *invoice
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.log.Info("invoice cancelled",
		zap.String("invoice_number", cancelled.InvoiceNumber),
		zap.String("invoice_id", invoiceID.String()),
	)
	return cancelled, nil
}

// AddSaleToDraft appends one more sale to an open draft and recomputes the
// totals.
func (s *Service) AddSaleToDraft(ctx context.Context, invoiceID, saleID string) (domain.InvoiceDetail, error) {
	invID, err := parseID(invoiceID)
	if err != nil {
		return domain.InvoiceDetail{}, err
	}
	slID, err := parseID(saleID)
	if err != nil {
		return domain.InvoiceDetail{}, domain.ErrInvalidSale
	}

	var detail domain.InvoiceDetail
	err = s.gate.Do(func() error {
		invoice, err := s.repo.FindByID(ctx, s.db, invID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrNotFound
		}
		if invoice.Status != domain.StatusDraft {
			return domain.ErrNotDraft
		}

		sale, err := s.sales.FindByID(ctx, s.db, slID)
		if err != nil {
			return err
		}
		if sale == nil {
			return domain.ErrInvalidSale
		}
		if sale.InvoiceID != nil {
			return domain.ErrSaleBilled
		}
		if sale.CustomerID != nil && *sale.CustomerID != invoice.CustomerID {
			return domain.ErrInvalidSale
		}

		items, err := s.repo.ListLineItems(ctx, s.db, invID)
		if err != nil {
			return err
		}
		oldTotals := currentTotals(invoice)

		comp := db.NewCompensations()

		item := snapshotLine(sale, invoice, len(items)+1)
		item.ID = s.genID.Generate()
		item.CreatedAt = s.clock.Now()
		if err := s.repo.InsertLineItem(ctx, s.db, &item); err != nil {
			return err
		}
		comp.Add(func() error {
			return s.repo.DeleteLineItem(ctx, s.db, item.ID)
		})

		if err := s.sales.SetInvoice(ctx, s.db, slID, &invID); err != nil {
			comp.Revert(s.log)
			return err
		}
		comp.Add(func() error {
			return s.sales.SetInvoice(ctx, s.db, slID, nil)
		})

		items = append(items, item)
		totals := computeTotals(items, invoice.TaxRate)
		if err := s.repo.UpdateTotals(ctx, s.db, invID, totals); err != nil {
			comp.Revert(s.log)
			return err
		}
		comp.Add(func() error {
			return s.repo.UpdateTotals(ctx, s.db, invID, oldTotals)
		})

		_, err = s.audit.Append(ctx, auditdomain.Entry{
			EntityType: "invoice",
			EntityID:   invID.String(),
			Action:     "add_line",
			NewValues: map[string]any{
				"sale_id":      slID.String(),
				"line_total":   item.LineTotal.String(),
				"total_amount": totals.TotalAmount.String(),
			},
		})
		if err != nil {
			comp.Revert(s.log)
			return err
		}

		comp.Discard()
		applyTotals(invoice, totals)
		detail = domain.InvoiceDetail{Invoice: *invoice, LineItems: items}
		return nil
	})
	if err != nil {
		return domain.InvoiceDetail{}, err
	}
	return detail, nil
}

// RemoveSaleFromDraft drops a sale's line from an open draft, releases the
// sale, renumbers the remaining lines and recomputes the totals.
func (s *Service) RemoveSaleFromDraft(ctx context.Context, invoiceID, saleID string) (domain.InvoiceDetail, error) {
	invID, err := parseID(invoiceID)
	if err != nil {
		return domain.InvoiceDetail{}, err
	}
	slID, err := parseID(saleID)
	if err != nil {
		return domain.InvoiceDetail{}, domain.ErrInvalidSale
	}

	var detail domain.InvoiceDetail
	err = s.gate.Do(func() error {
		invoice, err := s.repo.FindByID(ctx, s.db, invID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrNotFound
		}
		if invoice.Status != domain.StatusDraft {
			return domain.ErrNotDraft
		}

		items, err := s.repo.ListLineItems(ctx, s.db, invID)
		if err != nil {
			return err
		}
		var removed *domain.LineItem
		remaining := make([]domain.LineItem, 0, len(items))
		for i := range items {
			if items[i].SaleID != nil && *items[i].SaleID == slID && removed == nil {
				removed = &items[i]
				continue
			}
			remaining = append(remaining, items[i])
		}
		if removed == nil {
			return domain.ErrInvalidSale
		}
		oldTotals := currentTotals(invoice)

		comp := db.NewCompensations()

		if err := s.repo.DeleteLineItem(ctx, s.db, removed.ID); err != nil {
			return err
		}
		restore := *removed
		comp.Add(func() error {
			return s.repo.InsertLineItem(ctx, s.db, &restore)
		})

		if err := s.sales.SetInvoice(ctx, s.db, slID, nil); err != nil {
			comp.Revert(s.log)
			return err
		}
		comp.Add(func() error {
			return s.sales.SetInvoice(ctx, s.db, slID, &invID)
		})

		for i := range remaining {
			item := &remaining[i]
			if item.SequenceNumber == i+1 {
				continue
			}
			oldSeq := item.SequenceNumber
			if err := s.repo.UpdateLineSequence(ctx, s.db, item.ID, i+1); err != nil {
				comp.Revert(s.log)
				return err
			}
			itemID := item.ID
			comp.Add(func() error {
				return s.repo.UpdateLineSequence(ctx, s.db, itemID, oldSeq)
			})
			item.SequenceNumber = i + 1
		}

		totals := computeTotals(remaining, invoice.TaxRate)
		if err := s.repo.UpdateTotals(ctx, s.db, invID, totals); err != nil {
			comp.Revert(s.log)
			return err
		}
		comp.Add(func() error {
			return s.repo.UpdateTotals(ctx, s.db, invID, oldTotals)
		})

		_, err = s.audit.Append(ctx, auditdomain.Entry{
			EntityType: "invoice",
			EntityID:   invID.String(),
			Action:     "remove_line",
			NewValues: map[string]any{
				"sale_id":      slID.String(),
				"total_amount": totals.TotalAmount.String(),
			},
		})
		if err != nil {
			comp.Revert(s.log)
			return err
		}

		comp.Discard()
		applyTotals(invoice, totals)
		detail = domain.InvoiceDetail{Invoice: *invoice, LineItems: remaining}
		return nil
	})
	if err != nil {
		return domain.InvoiceDetail{}, err
	}
	return detail, nil
}

func (s *Service) resolveTaxRate(rate *decimal.Decimal) (decimal.Decimal, error) {
	if rate == nil {
		return decimal.NewFromFloat(s.billing.Get().DefaultTaxRate), nil
	}
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return decimal.Zero, domain.ErrInvalidTaxRate
	}
	return *rate, nil
}

// loadBillableSales resolves the requested sales and checks each one is still
// unbilled and belongs to the invoice's customer (or to nobody yet).
func (s *Service) loadBillableSales(ctx context.Context, saleIDs []snowflake.ID, customerID snowflake.ID) ([]*saledomain.Sale, error) {
	if len(saleIDs) == 0 {
		return nil, nil
	}
	found, err := s.sales.FindByIDs(ctx, s.db, saleIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[snowflake.ID]*saledomain.Sale, len(found))
	for _, sale := range found {
		byID[sale.ID] = sale
	}

	sales := make([]*saledomain.Sale, 0, len(saleIDs))
	for _, id := range saleIDs {
		sale, ok := byID[id]
		if !ok {
			return nil, domain.ErrInvalidSale
		}
		if sale.InvoiceID != nil {
			return nil, domain.ErrSaleBilled
		}
		if sale.CustomerID != nil && *sale.CustomerID != customerID {
			return nil, domain.ErrInvalidSale
		}
		sales = append(sales, sale)
	}
	return sales, nil
}

func parseSaleIDs(values []string) ([]snowflake.ID, error) {
	ids := make([]snowflake.ID, 0, len(values))
	seen := make(map[snowflake.ID]struct{}, len(values))
	for _, value := range values {
		id, err := parseID(value)
		if err != nil {
			return nil, domain.ErrInvalidSale
		}
		if _, dup := seen[id]; dup {
			return nil, domain.ErrInvalidSale
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func currentTotals(invoice *domain.Invoice) domain.Totals {
	return domain.Totals{
		Subtotal:    invoice.Subtotal,
		TaxAmount:   invoice.TaxAmount,
		NetTotal:    invoice.NetTotal,
		TotalAmount: invoice.TotalAmount,
	}
}

func applyTotals(invoice *domain.Invoice, totals domain.Totals) {
	invoice.Subtotal = totals.Subtotal
	invoice.TaxAmount = totals.TaxAmount
	invoice.NetTotal = totals.NetTotal
	invoice.TotalAmount = totals.TotalAmount
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
