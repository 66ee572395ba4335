package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallhaul/tradeledger/internal/audit/domain"
	"github.com/smallhaul/tradeledger/internal/clock"
	"github.com/smallhaul/tradeledger/internal/config"
	invoicedomain "github.com/smallhaul/tradeledger/internal/invoice/domain"
	"github.com/smallhaul/tradeledger/internal/metrics"
	"github.com/smallhaul/tradeledger/internal/payment/domain"
	"github.com/smallhaul/tradeledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// epsilon absorbs cent-level rounding when checking an incoming amount against
// the open balance. Anything past it is rejected outright.
var epsilon = decimal.NewFromFloat(0.01)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Gate     *db.WriteGate
	Clock    clock.Clock
	Billing  *config.BillingDefaultsHolder
	Repo     domain.Repository
	Invoices invoicedomain.Repository
	Audit    auditdomain.Service
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	gate     *db.WriteGate
	clock    clock.Clock
	billing  *config.BillingDefaultsHolder
	repo     domain.Repository
	invoices invoicedomain.Repository
	audit    auditdomain.Service
	metrics  *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("payment.service"),
		genID:    p.GenID,
		gate:     p.Gate,
		clock:    p.Clock,
		billing:  p.Billing,
		repo:     p.Repo,
		invoices: p.Invoices,
		audit:    p.Audit,
		metrics:  p.Metrics,
	}
}

// Record settles money against an issued invoice. When the running total
// reaches the invoice amount the invoice flips to PAID in the same gated
// operation. An amount past the open balance (plus epsilon) writes nothing.
func (s *Service) Record(ctx context.Context, req domain.RecordPaymentRequest) (domain.RecordResult, error) {
	invoiceID, err := parseID(req.InvoiceID)
	if err != nil {
		return domain.RecordResult{}, err
	}
	if req.Amount.IsNegative() || req.Amount.IsZero() {
		return domain.RecordResult{}, domain.ErrInvalidAmount
	}
	method := strings.ToLower(strings.TrimSpace(req.Method))
	if !s.billing.AcceptsMethod(method) {
		return domain.RecordResult{}, domain.ErrInvalidMethod
	}

	var result domain.RecordResult
	err = s.gate.Do(func() error {
		invoice, err := s.invoices.FindByID(ctx, s.db, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrNotFound
		}
		if invoice.Status == invoicedomain.StatusCancelled {
			return domain.ErrInvoiceCancelled
		}
		if invoice.Status != invoicedomain.StatusIssued {
			return domain.ErrNotIssued
		}

		paid, err := s.repo.SumByInvoice(ctx, s.db, invoiceID)
		if err != nil {
			return err
		}
		remaining := invoice.TotalAmount.Sub(paid)
		if req.Amount.GreaterThan(remaining.Add(epsilon)) {
			return domain.ErrOverPayment
		}

		paidDate := s.clock.Now()
		if req.PaidDate != nil {
			paidDate = req.PaidDate.UTC()
		}

		payment := domain.Payment{
			ID:        s.genID.Generate(),
			InvoiceID: invoiceID,
			Amount:    req.Amount,
			PaidDate:  paidDate,
			Method:    method,
			CreatedAt: s.clock.Now(),
		}
		if notes := strings.TrimSpace(req.Notes); notes != "" {
			payment.Notes = &notes
		}
		if ref := strings.TrimSpace(req.Reference); ref != "" {
			payment.Reference = &ref
		}

		comp := db.NewCompensations()

		if err := s.repo.Insert(ctx, s.db, &payment); err != nil {
			return err
		}
		comp.Add(func() error {
			return s.repo.Delete(ctx, s.db, payment.ID)
		})

		newPaid := paid.Add(req.Amount)
		status := invoicedomain.StatusIssued
		if newPaid.GreaterThanOrEqual(invoice.TotalAmount.Sub(epsilon)) {
			if err := s.invoices.SetStatus(ctx, s.db, invoiceID, invoicedomain.StatusPaid); err != nil {
				comp.Revert(s.log)
				return err
			}
			comp.Add(func() error {
				return s.invoices.SetStatus(ctx, s.db, invoiceID, invoicedomain.StatusIssued)
			})
			if err := s.invoices.SetPaymentReceived(ctx, s.db, invoiceID, &paidDate); err != nil {
				comp.Revert(s.log)
				return err
			}
			comp.Add(func() error {
				return s.invoices.SetPaymentReceived(ctx, s.db, invoiceID, nil)
			})
			status = invoicedomain.StatusPaid
		}

		_, err = s.audit.Append(ctx, auditdomain.Entry{
			EntityType: "payment",
			EntityID:   payment.ID.String(),
			Action:     "record",
			NewValues: map[string]any{
				"invoice_id":     invoiceID.String(),
				"amount":         req.Amount.String(),
				"method":         method,
				"invoice_status": string(status),
				"balance":        invoice.TotalAmount.Sub(newPaid).String(),
			},
		})
		if err != nil {
			comp.Revert(s.log)
			return err
		}

		comp.Discard()
		result = domain.RecordResult{
			Payment:       payment,
			InvoiceStatus: string(status),
			PaidTotal:     newPaid,
			Balance:       invoice.TotalAmount.Sub(newPaid),
		}
		return nil
	})
	if err != nil {
		return domain.RecordResult{}, err
	}

	if s.metrics != nil {
		s.metrics.PaymentsRecordedTotal.Inc()
	}
	s.log.Info("payment recorded",
		zap.String("invoice_id", invoiceID.String()),
		zap.String("amount", req.Amount.String()),
		zap.String("invoice_status", result.InvoiceStatus),
	)
	return result, nil
}

// Reverse removes a recorded payment. If the invoice was PAID and the removal
// leaves more than a cent open, the invoice moves back to ISSUED and its
// received date is cleared.
func (s *Service) Reverse(ctx context.Context, paymentID, reason string) (domain.ReverseResult, error) {
	payID, err := parseID(paymentID)
	if err != nil {
		return domain.ReverseResult{}, err
	}
	reason = strings.TrimSpace(reason)

	var result domain.ReverseResult
	err = s.gate.Do(func() error {
		payment, err := s.repo.FindByID(ctx, s.db, payID)
		if err != nil {
			return err
		}
		if payment == nil {
			return domain.ErrNotFound
		}
		invoice, err := s.invoices.FindByID(ctx, s.db, payment.InvoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrNotFound
		}

		comp := db.NewCompensations()

		if err := s.repo.Delete(ctx, s.db, payID); err != nil {
			return err
		}
		restore := *payment
		comp.Add(func() error {
			return s.repo.Insert(ctx, s.db, &restore)
		})

		paid, err := s.repo.SumByInvoice(ctx, s.db, payment.InvoiceID)
		if err != nil {
			comp.Revert(s.log)
			return err
		}

		status := invoice.Status
		if invoice.Status == invoicedomain.StatusPaid && invoice.TotalAmount.Sub(paid).GreaterThan(epsilon) {
			if err := s.invoices.SetStatus(ctx, s.db, payment.InvoiceID, invoicedomain.StatusIssued); err != nil {
				comp.Revert(s.log)
				return err
			}
			comp.Add(func() error {
				return s.invoices.SetStatus(ctx, s.db, payment.InvoiceID, invoicedomain.StatusPaid)
			})
			received := invoice.PaymentReceivedDate
			if err := s.invoices.SetPaymentReceived(ctx, s.db, payment.InvoiceID, nil); err != nil {
				comp.Revert(s.log)
				return err
			}
			comp.Add(func() error {
				return s.invoices.SetPaymentReceived(ctx, s.db, payment.InvoiceID, received)
			})
			status = invoicedomain.StatusIssued
		}

		_, err = s.audit.Append(ctx, auditdomain.Entry{
			EntityType: "payment",
			EntityID:   payID.String(),
			Action:     "reverse",
			OldValues: map[string]any{
				"invoice_id": payment.InvoiceID.String(),
				"amount":     payment.Amount.String(),
			},
			NewValues: map[string]any{
				"invoice_status": string(status),
				"balance":        invoice.TotalAmount.Sub(paid).String(),
				"reason":         reason,
			},
		})
		if err != nil {
			comp.Revert(s.log)
			return err
		}

		comp.Discard()
		result = domain.ReverseResult{
			InvoiceStatus: string(status),
			PaidTotal:     paid,
			Balance:       invoice.TotalAmount.Sub(paid),
		}
		return nil
	})
	if err != nil {
		return domain.ReverseResult{}, err
	}

	s.log.Info("payment reversed",
		zap.String("payment_id", payID.String()),
		zap.String("invoice_status", result.InvoiceStatus),
	)
	return result, nil
}

func (s *Service) Balance(ctx context.Context, invoiceID string) (decimal.Decimal, error) {
	invID, err := parseID(invoiceID)
	if err != nil {
		return decimal.Zero, err
	}
	invoice, err := s.invoices.FindByID(ctx, s.db, invID)
	if err != nil {
		return decimal.Zero, err
	}
	if invoice == nil {
		return decimal.Zero, domain.ErrNotFound
	}
	paid, err := s.repo.SumByInvoice(ctx, s.db, invID)
	if err != nil {
		return decimal.Zero, err
	}
	return invoice.TotalAmount.Sub(paid), nil
}

func (s *Service) SummarizeInvoice(ctx context.Context, invoiceID string) (domain.Summary, error) {
	invID, err := parseID(invoiceID)
	if err != nil {
		return domain.Summary{}, err
	}
	invoice, err := s.invoices.FindByID(ctx, s.db, invID)
	if err != nil {
		return domain.Summary{}, err
	}
	if invoice == nil {
		return domain.Summary{}, domain.ErrNotFound
	}
	items, err := s.invoices.ListLineItems(ctx, s.db, invID)
	if err != nil {
		return domain.Summary{}, err
	}
	payments, err := s.repo.ListByInvoice(ctx, s.db, invID)
	if err != nil {
		return domain.Summary{}, err
	}
	paid := decimal.Zero
	for _, payment := range payments {
		paid = paid.Add(payment.Amount)
	}
	return domain.Summary{
		Invoice:   *invoice,
		LineItems: items,
		Payments:  payments,
		PaidTotal: paid,
		Balance:   invoice.TotalAmount.Sub(paid),
	}, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
