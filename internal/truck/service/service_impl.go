package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallhaul/tradeledger/internal/truck/domain"
	"github.com/smallhaul/tradeledger/pkg/db"
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
		log:   p.Log.Named("truck.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTruckRequest) (domain.Truck, error) {
	plate := strings.ToUpper(strings.TrimSpace(req.PlateNumber))
	if plate == "" {
		return domain.Truck{}, domain.ErrInvalidPlateNumber
	}

	now := time.Now().UTC()
	truck := domain.Truck{
		ID:          s.genID.Generate(),
		PlateNumber: plate,
		DriverName:  strings.TrimSpace(req.DriverName),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, s.db, &truck); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Truck{}, domain.ErrDuplicatePlate
		}
		return domain.Truck{}, err
	}
	return truck, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Truck, error) {
	truckID, err := parseID(id)
	if err != nil {
		return domain.Truck{}, err
	}
	item, err := s.repo.FindByID(ctx, s.db, truckID)
	if err != nil {
		return domain.Truck{}, err
	}
	if item == nil {
		return domain.Truck{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Truck, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	trucks := make([]domain.Truck, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		trucks = append(trucks, *item)
	}
	return trucks, nil
}

func (s *Service) Deactivate(ctx context.Context, id string) error {
	truckID, err := parseID(id)
	if err != nil {
		return err
	}
	item, err := s.repo.FindByID(ctx, s.db, truckID)
	if err != nil {
		return err
	}
	if item == nil {
		return domain.ErrNotFound
	}
	return s.repo.SetActive(ctx, s.db, truckID, false)
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
