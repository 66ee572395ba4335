package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	auditrepository "github.com/smallhaul/tradeledger/internal/audit/repository"
	auditservice "github.com/smallhaul/tradeledger/internal/audit/service"
	customerdomain "github.com/smallhaul/tradeledger/internal/customer/domain"
	customerrepository "github.com/smallhaul/tradeledger/internal/customer/repository"
	productdomain "github.com/smallhaul/tradeledger/internal/product/domain"
	productrepository "github.com/smallhaul/tradeledger/internal/product/repository"
	"github.com/smallhaul/tradeledger/internal/sale/domain"
	"github.com/smallhaul/tradeledger/internal/sale/repository"
	truckdomain "github.com/smallhaul/tradeledger/internal/truck/domain"
	truckrepository "github.com/smallhaul/tradeledger/internal/truck/repository"
	"github.com/smallhaul/tradeledger/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fixture struct {
	db        *gorm.DB
	node      *snowflake.Node
	svc       domain.Service
	trucks    truckdomain.Repository
	products  productdomain.Repository
	customers customerdomain.Repository
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

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    gdb,
		Log:   log,
		GenID: node,
		Repo:  auditrepository.Provide(),
	})

	f := &fixture{
		db:        gdb,
		node:      node,
		trucks:    truckrepository.Provide(),
		products:  productrepository.Provide(),
		customers: customerrepository.Provide(),
	}
	f.svc = NewService(Params{
		DB:        gdb,
		Log:       log,
		GenID:     node,
		Gate:      db.NewWriteGate(),
		Repo:      repository.Provide(),
		Trucks:    f.trucks,
		Products:  f.products,
		Customers: f.customers,
		Audit:     auditSvc,
	})
	return f
}

func (f *fixture) seedTruck(t *testing.T, active bool) truckdomain.Truck {
	t.Helper()
	truck := truckdomain.Truck{
		ID:          f.node.Generate(),
		PlateNumber: "TR-" + f.node.Generate().String(),
		IsActive:    active,
	}
	require.NoError(t, f.trucks.Insert(context.Background(), f.db, &truck))
	return truck
}

func (f *fixture) seedProduct(t *testing.T, price int64) productdomain.Product {
	t.Helper()
	product := productdomain.Product{
		ID:        f.node.Generate(),
		Name:      "Gravel",
		Unit:      "ton",
		UnitPrice: decimal.NewFromInt(price),
		IsActive:  true,
	}
	require.NoError(t, f.products.Insert(context.Background(), f.db, &product))
	return product
}

func TestCreateSnapshotsProductPriceAndAppliesDiscounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	truck := f.seedTruck(t, true)
	product := f.seedProduct(t, 20)

	sale, err := f.svc.Create(ctx, domain.CreateSaleRequest{
		TruckID:   truck.ID.String(),
		ProductID: product.ID.String(),
		Quantity:  decimal.NewFromInt(5),
	})
	require.NoError(t, err)
	require.True(t, sale.UnitPrice.Equal(decimal.NewFromInt(20)))
	require.True(t, sale.TotalPrice.Equal(decimal.NewFromInt(100)), sale.TotalPrice.String())

	discounted, err := f.svc.Create(ctx, domain.CreateSaleRequest{
		TruckID:       truck.ID.String(),
		ProductID:     product.ID.String(),
		Quantity:      decimal.NewFromInt(5),
		DiscountType:  domain.DiscountTypePercent,
		DiscountValue: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	require.True(t, discounted.DiscountAmount.Equal(decimal.NewFromInt(10)), discounted.DiscountAmount.String())
	require.True(t, discounted.TotalPrice.Equal(decimal.NewFromInt(90)), discounted.TotalPrice.String())

	flat, err := f.svc.Create(ctx, domain.CreateSaleRequest{
		TruckID:       truck.ID.String(),
		ProductID:     product.ID.String(),
		Quantity:      decimal.NewFromInt(5),
		DiscountType:  domain.DiscountTypeAmount,
		DiscountValue: decimal.NewFromInt(25),
	})
	require.NoError(t, err)
	require.True(t, flat.TotalPrice.Equal(decimal.NewFromInt(75)), flat.TotalPrice.String())
}

func TestCreateRejectsBadReferencesAndDiscounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	truck := f.seedTruck(t, true)
	parked := f.seedTruck(t, false)
	product := f.seedProduct(t, 20)

	_, err := f.svc.Create(ctx, domain.CreateSaleRequest{
		TruckID:   parked.ID.String(),
		ProductID: product.ID.String(),
		Quantity:  decimal.NewFromInt(1),
	})
	require.ErrorIs(t, err, domain.ErrInvalidTruck)

	_, err = f.svc.Create(ctx, domain.CreateSaleRequest{
		TruckID:   truck.ID.String(),
		ProductID: f.node.Generate().String(),
		Quantity:  decimal.NewFromInt(1),
	})
	require.ErrorIs(t, err, domain.ErrInvalidProduct)

	_, err = f.svc.Create(ctx, domain.CreateSaleRequest{
		TruckID:   truck.ID.String(),
		ProductID: product.ID.String(),
		Quantity:  decimal.Zero,
	})
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)

	// Discount larger than the gross amount.
	_, err = f.svc.Create(ctx, domain.CreateSaleRequest{
		TruckID:       truck.ID.String(),
		ProductID:     product.ID.String(),
		Quantity:      decimal.NewFromInt(1),
		DiscountType:  domain.DiscountTypeAmount,
		DiscountValue: decimal.NewFromInt(999),
	})
	require.ErrorIs(t, err, domain.ErrInvalidDiscount)

	_, err = f.svc.Create(ctx, domain.CreateSaleRequest{
		TruckID:       truck.ID.String(),
		ProductID:     product.ID.String(),
		Quantity:      decimal.NewFromInt(1),
		DiscountType:  "coupon",
		DiscountValue: decimal.NewFromInt(1),
	})
	require.ErrorIs(t, err, domain.ErrInvalidDiscount)
}

func TestListFiltersUnbilledAndByCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	truck := f.seedTruck(t, true)
	product := f.seedProduct(t, 20)

	customer := customerdomain.Customer{
		ID:       f.node.Generate(),
		Name:     "Yard",
		IsActive: true,
	}
	require.NoError(t, f.customers.Insert(ctx, f.db, &customer))

	sale, err := f.svc.Create(ctx, domain.CreateSaleRequest{
		TruckID:    truck.ID.String(),
		ProductID:  product.ID.String(),
		CustomerID: customer.ID.String(),
		Quantity:   decimal.NewFromInt(2),
	})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, domain.CreateSaleRequest{
		TruckID:   truck.ID.String(),
		ProductID: product.ID.String(),
		Quantity:  decimal.NewFromInt(3),
	})
	require.NoError(t, err)

	mine, err := f.svc.List(ctx, domain.ListSalesRequest{CustomerID: customer.ID.String()})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, sale.ID, mine[0].ID)

	unbilled, err := f.svc.List(ctx, domain.ListSalesRequest{Unbilled: true})
	require.NoError(t, err)
	require.Len(t, unbilled, 2)
}
