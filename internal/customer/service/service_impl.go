package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallhaul/tradeledger/internal/audit/domain"
	"github.com/smallhaul/tradeledger/internal/auditctx"
	"github.com/smallhaul/tradeledger/internal/customer/domain"
	invoicedomain "github.com/smallhaul/tradeledger/internal/invoice/domain"
	"github.com/smallhaul/tradeledger/internal/metrics"
	saledomain "github.com/smallhaul/tradeledger/internal/sale/domain"
	"github.com/smallhaul/tradeledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Gate     *db.WriteGate
	Repo     domain.Repository
	Sales    saledomain.Repository
	Invoices invoicedomain.Repository
	Audit    auditdomain.Service
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	gate     *db.WriteGate
	repo     domain.Repository
	sales    saledomain.Repository
	invoices invoicedomain.Repository
	audit    auditdomain.Service
	metrics  *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("customer.service"),
		genID:    p.GenID,
		gate:     p.Gate,
		repo:     p.Repo,
		sales:    p.Sales,
		invoices: p.Invoices,
		audit:    p.Audit,
		metrics:  p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, domain.ErrInvalidName
	}

	now := time.Now().UTC()
	customer := domain.Customer{
		ID:        s.genID.Generate(),
		Name:      name,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		customer.Email = &email
	}

	if err := s.repo.Insert(ctx, s.db, &customer); err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Customer, error) {
	customerID, err := parseID(id)
	if err != nil {
		return domain.Customer{}, err
	}
	customer, err := s.repo.FindByID(ctx, s.db, customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	if customer == nil {
		return domain.Customer{}, domain.ErrNotFound
	}
	return *customer, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Customer, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	customers := make([]domain.Customer, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		customers = append(customers, *item)
	}
	return customers, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateCustomerRequest) (domain.Customer, error) {
	customerID, err := parseID(req.ID)
	if err != nil {
		return domain.Customer{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, domain.ErrInvalidName
	}

	customer, err := s.repo.FindByID(ctx, s.db, customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	if customer == nil {
		return domain.Customer{}, domain.ErrNotFound
	}

	customer.Name = name
	customer.Email = nil
	if email := strings.TrimSpace(req.Email); email != "" {
		customer.Email = &email
	}
	customer.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, s.db, customer); err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) Deactivate(ctx context.Context, id string) error {
	customerID, err := parseID(id)
	if err != nil {
		return err
	}
	customer, err := s.repo.FindByID(ctx, s.db, customerID)
	if err != nil {
		return err
	}
	if customer == nil {
		return domain.ErrNotFound
	}
	return s.repo.SetActive(ctx, s.db, customerID, false)
}

// Merge moves every sale and invoice from the source customer onto the target,
// then records provenance and retires the source. All writes happen under the
// write gate; on any failure the already applied steps are reversed in order.
func (s *Service) Merge(ctx context.Context, req domain.MergeRequest) (domain.MergeResult, error) {
	sourceID, err := parseID(req.SourceID)
	if err != nil {
		return domain.MergeResult{}, err
	}
	targetID, err := parseID(req.TargetID)
	if err != nil {
		return domain.MergeResult{}, err
	}
	if sourceID == targetID {
		return domain.MergeResult{}, domain.ErrSelfMerge
	}

	source, err := s.repo.FindByID(ctx, s.db, sourceID)
	if err != nil {
		return domain.MergeResult{}, err
	}
	if source == nil {
		return domain.MergeResult{}, domain.ErrNotFound
	}
	target, err := s.repo.FindByID(ctx, s.db, targetID)
	if err != nil {
		return domain.MergeResult{}, err
	}
	if target == nil {
		return domain.MergeResult{}, domain.ErrNotFound
	}
	if !target.IsActive {
		return domain.MergeResult{}, domain.ErrInactiveTarget
	}

	prior, err := s.repo.FindMergeBySource(ctx, s.db, sourceID)
	if err != nil {
		return domain.MergeResult{}, err
	}
	if prior != nil {
		return domain.MergeResult{}, domain.ErrAlreadyMerged
	}
	if !source.IsActive {
		return domain.MergeResult{}, domain.ErrInactiveSource
	}

	var result domain.MergeResult
	err = s.gate.Do(func() error {
		comp := db.NewCompensations()

		// Capture the rows being moved so the undo path can restore
		// exactly these, leaving the target's own history untouched.
		sourceSales, err := s.sales.List(ctx, s.db, saledomain.ListFilter{CustomerID: &sourceID})
		if err != nil {
			return err
		}
		saleIDs := make([]snowflake.ID, 0, len(sourceSales))
		for _, sale := range sourceSales {
			saleIDs = append(saleIDs, sale.ID)
		}
		invoiceIDs, err := s.invoices.IDsByCustomer(ctx, s.db, sourceID)
		if err != nil {
			return err
		}

		salesMoved, err := s.sales.ReassignCustomer(ctx, s.db, sourceID, targetID)
		if err != nil {
			comp.Revert(s.log)
			return err
		}
		comp.Add(func() error {
			return s.sales.ReassignCustomerForIDs(ctx, s.db, saleIDs, sourceID)
		})

		invoicesMoved, err := s.invoices.ReassignCustomer(ctx, s.db, sourceID, targetID)
		if err != nil {
			comp.Revert(s.log)
			return err
		}
		comp.Add(func() error {
			return s.invoices.ReassignCustomerForIDs(ctx, s.db, invoiceIDs, sourceID)
		})

		merge := domain.CustomerMerge{
			ID:               s.genID.Generate(),
			SourceCustomerID: sourceID,
			TargetCustomerID: targetID,
			MergedAt:         time.Now().UTC(),
		}
		if userID := auditctx.UserIDFromContext(ctx); userID != "" {
			merge.MergedByUserID = &userID
		}
		if err := s.repo.InsertMerge(ctx, s.db, &merge); err != nil {
			comp.Revert(s.log)
			return err
		}
		comp.Add(func() error {
			return s.repo.DeleteMerge(ctx, s.db, merge.ID)
		})

		if err := s.repo.SetActive(ctx, s.db, sourceID, false); err != nil {
			comp.Revert(s.log)
			return err
		}
		comp.Add(func() error {
			return s.repo.SetActive(ctx, s.db, sourceID, true)
		})

		_, err = s.audit.Append(ctx, auditdomain.Entry{
			EntityType: "customer",
			EntityID:   sourceID.String(),
			Action:     "deactivate",
			OldValues:  map[string]any{"is_active": source.IsActive},
			NewValues:  map[string]any{"is_active": false},
		})
		if err != nil {
			comp.Revert(s.log)
			return err
		}

		_, err = s.audit.Append(ctx, auditdomain.Entry{
			EntityType: "customer",
			EntityID:   sourceID.String(),
			Action:     "merge",
			OldValues: map[string]any{
				"name":      source.Name,
				"is_active": source.IsActive,
			},
			NewValues: map[string]any{
				"target_customer_id": targetID.String(),
				"sales_moved":        salesMoved,
				"invoices_moved":     invoicesMoved,
			},
		})
		if err != nil {
			comp.Revert(s.log)
			return err
		}

		comp.Discard()
		result = domain.MergeResult{
			Merge:          merge,
			SalesMoved:     salesMoved,
			InvoicesMoved:  invoicesMoved,
			TargetCustomer: *target,
		}
		return nil
	})
	if err != nil {
		return domain.MergeResult{}, err
	}

	if s.metrics != nil {
		s.metrics.CustomerMergesTotal.Inc()
	}
	s.log.Info("customers merged",
		zap.String("source_id", sourceID.String()),
		zap.String("target_id", targetID.String()),
		zap.Int64("sales_moved", result.SalesMoved),
		zap.Int64("invoices_moved", result.InvoicesMoved),
	)
	return result, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
