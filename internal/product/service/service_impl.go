package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallhaul/tradeledger/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("product.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateProductRequest) (domain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Product{}, domain.ErrInvalidName
	}
	unit := strings.TrimSpace(req.Unit)
	if unit == "" {
		return domain.Product{}, domain.ErrInvalidUnit
	}
	if req.UnitPrice.IsNegative() {
		return domain.Product{}, domain.ErrInvalidPrice
	}

	now := time.Now().UTC()
	product := domain.Product{
		ID:        s.genID.Generate(),
		Name:      name,
		Unit:      unit,
		UnitPrice: req.UnitPrice,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, &product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Product, error) {
	productID, err := parseID(id)
	if err != nil {
		return domain.Product{}, err
	}
	item, err := s.repo.FindByID(ctx, s.db, productID)
	if err != nil {
		return domain.Product{}, err
	}
	if item == nil {
		return domain.Product{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		products = append(products, *item)
	}
	return products, nil
}

func (s *Service) UpdatePrice(ctx context.Context, req domain.UpdatePriceRequest) (domain.Product, error) {
	productID, err := parseID(req.ID)
	if err != nil {
		return domain.Product{}, err
	}
	if req.UnitPrice.IsNegative() || req.UnitPrice.Equal(decimal.Zero) {
		return domain.Product{}, domain.ErrInvalidPrice
	}

	item, err := s.repo.FindByID(ctx, s.db, productID)
	if err != nil {
		return domain.Product{}, err
	}
	if item == nil {
		return domain.Product{}, domain.ErrNotFound
	}

	if err := s.repo.UpdatePrice(ctx, s.db, productID, req.UnitPrice); err != nil {
		return domain.Product{}, err
	}
	item.UnitPrice = req.UnitPrice
	return *item, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
