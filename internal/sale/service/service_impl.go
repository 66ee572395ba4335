package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallhaul/tradeledger/internal/audit/domain"
	customerdomain "github.com/smallhaul/tradeledger/internal/customer/domain"
	productdomain "github.com/smallhaul/tradeledger/internal/product/domain"
	"github.com/smallhaul/tradeledger/internal/sale/domain"
	truckdomain "github.com/smallhaul/tradeledger/internal/truck/domain"
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
	Repo      domain.Repository
	Trucks    truckdomain.Repository
	Products  productdomain.Repository
	Customers customerdomain.Repository
	Audit     auditdomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	gate      *db.WriteGate
	repo      domain.Repository
	trucks    truckdomain.Repository
	products  productdomain.Repository
	customers customerdomain.Repository
	audit     auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("sale.service"),
		genID:     p.GenID,
		gate:      p.Gate,
		repo:      p.Repo,
		trucks:    p.Trucks,
		products:  p.Products,
		customers: p.Customers,
		audit:     p.Audit,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateSaleRequest) (domain.Sale, error) {
	truckID, err := parseID(req.TruckID)
	if err != nil {
		return domain.Sale{}, domain.ErrInvalidTruck
	}
	productID, err := parseID(req.ProductID)
	if err != nil {
		return domain.Sale{}, domain.ErrInvalidProduct
	}
	if req.Quantity.IsNegative() || req.Quantity.IsZero() {
		return domain.Sale{}, domain.ErrInvalidQuantity
	}

	truck, err := s.trucks.FindByID(ctx, s.db, truckID)
	if err != nil {
		return domain.Sale{}, err
	}
	if truck == nil || !truck.IsActive {
		return domain.Sale{}, domain.ErrInvalidTruck
	}

	product, err := s.products.FindByID(ctx, s.db, productID)
	if err != nil {
		return domain.Sale{}, err
	}
	if product == nil || !product.IsActive {
		return domain.Sale{}, domain.ErrInvalidProduct
	}

	var customerID *snowflake.ID
	if strings.TrimSpace(req.CustomerID) != "" {
		id, err := parseID(req.CustomerID)
		if err != nil {
			return domain.Sale{}, domain.ErrInvalidCustomer
		}
		customer, err := s.customers.FindByID(ctx, s.db, id)
		if err != nil {
			return domain.Sale{}, err
		}
		if customer == nil || !customer.IsActive {
			return domain.Sale{}, domain.ErrInvalidCustomer
		}
		customerID = &id
	}

	unitPrice := product.UnitPrice
	if req.UnitPrice != nil {
		if req.UnitPrice.IsNegative() {
			return domain.Sale{}, domain.ErrInvalidQuantity
		}
		unitPrice = *req.UnitPrice
	}

	gross := req.Quantity.Mul(unitPrice)
	discount, discountType, err := resolveDiscount(gross, req.DiscountType, req.DiscountValue)
	if err != nil {
		return domain.Sale{}, err
	}

	now := time.Now().UTC()
	saleDate := now
	if req.SaleDate != nil {
		saleDate = req.SaleDate.UTC()
	}

	sale := domain.Sale{
		ID:             s.genID.Generate(),
		TruckID:        truckID,
		ProductID:      productID,
		CustomerID:     customerID,
		Quantity:       req.Quantity,
		UnitPrice:      unitPrice,
		DiscountType:   discountType,
		DiscountAmount: discount,
		TotalPrice:     gross.Sub(discount).Round(2),
		SaleDate:       saleDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.gate.Do(func() error {
		if err := s.repo.Insert(ctx, s.db, &sale); err != nil {
			return err
		}
		_, err := s.audit.Append(ctx, auditdomain.Entry{
			EntityType: "sale",
			EntityID:   sale.ID.String(),
			Action:     "create",
			NewValues: map[string]any{
				"truck_id":    sale.TruckID.String(),
				"product_id":  sale.ProductID.String(),
				"quantity":    sale.Quantity.String(),
				"total_price": sale.TotalPrice.String(),
			},
		})
		if err != nil {
			if delErr := s.repo.Delete(ctx, s.db, sale.ID); delErr != nil {
				s.log.Error("compensating sale delete failed",
					zap.String("sale_id", sale.ID.String()), zap.Error(delErr))
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Sale{}, err
	}
	return sale, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Sale, error) {
	saleID, err := parseID(id)
	if err != nil {
		return domain.Sale{}, domain.ErrInvalidID
	}
	sale, err := s.repo.FindByID(ctx, s.db, saleID)
	if err != nil {
		return domain.Sale{}, err
	}
	if sale == nil {
		return domain.Sale{}, domain.ErrNotFound
	}
	return *sale, nil
}

func (s *Service) List(ctx context.Context, req domain.ListSalesRequest) ([]domain.Sale, error) {
	var filter domain.ListFilter
	if strings.TrimSpace(req.CustomerID) != "" {
		id, err := parseID(req.CustomerID)
		if err != nil {
			return nil, domain.ErrInvalidCustomer
		}
		filter.CustomerID = &id
	}
	if strings.TrimSpace(req.TruckID) != "" {
		id, err := parseID(req.TruckID)
		if err != nil {
			return nil, domain.ErrInvalidTruck
		}
		filter.TruckID = &id
	}
	filter.Unbilled = req.Unbilled

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	sales := make([]domain.Sale, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		sales = append(sales, *item)
	}
	return sales, nil
}

func resolveDiscount(gross decimal.Decimal, discountType string, value decimal.Decimal) (decimal.Decimal, *string, error) {
	discountType = strings.TrimSpace(strings.ToLower(discountType))
	if discountType == "" {
		if !value.IsZero() {
			return decimal.Zero, nil, domain.ErrInvalidDiscount
		}
		return decimal.Zero, nil, nil
	}
	if value.IsNegative() {
		return decimal.Zero, nil, domain.ErrInvalidDiscount
	}

	var discount decimal.Decimal
	switch discountType {
	case domain.DiscountTypePercent:
		if value.GreaterThan(decimal.NewFromInt(100)) {
			return decimal.Zero, nil, domain.ErrInvalidDiscount
		}
		discount = gross.Mul(value).Div(decimal.NewFromInt(100)).Round(2)
	case domain.DiscountTypeAmount:
		discount = value
	default:
		return decimal.Zero, nil, domain.ErrInvalidDiscount
	}

	if discount.GreaterThan(gross) {
		return decimal.Zero, nil, domain.ErrInvalidDiscount
	}
	return discount, &discountType, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
