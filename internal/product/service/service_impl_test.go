package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallhaul/tradeledger/internal/product/domain"
	"github.com/smallhaul/tradeledger/internal/product/repository"
	"github.com/smallhaul/tradeledger/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newProductService(t *testing.T) domain.Service {
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
	return NewService(Params{
		DB:    gdb,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
}

func TestCreateValidatesAndTrims(t *testing.T) {
	svc := newProductService(t)
	ctx := context.Background()

	product, err := svc.Create(ctx, domain.CreateProductRequest{
		Name:      "  Sand ",
		Unit:      "ton",
		UnitPrice: decimal.NewFromInt(30),
	})
	require.NoError(t, err)
	require.Equal(t, "Sand", product.Name)
	require.True(t, product.IsActive)

	_, err = svc.Create(ctx, domain.CreateProductRequest{Unit: "ton"})
	require.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, domain.CreateProductRequest{Name: "Sand"})
	require.ErrorIs(t, err, domain.ErrInvalidUnit)

	_, err = svc.Create(ctx, domain.CreateProductRequest{
		Name:      "Sand",
		Unit:      "ton",
		UnitPrice: decimal.NewFromInt(-1),
	})
	require.ErrorIs(t, err, domain.ErrInvalidPrice)
}

func TestUpdatePrice(t *testing.T) {
	svc := newProductService(t)
	ctx := context.Background()

	product, err := svc.Create(ctx, domain.CreateProductRequest{
		Name:      "Gravel",
		Unit:      "ton",
		UnitPrice: decimal.NewFromInt(20),
	})
	require.NoError(t, err)

	updated, err := svc.UpdatePrice(ctx, domain.UpdatePriceRequest{
		ID:        product.ID.String(),
		UnitPrice: decimal.NewFromInt(25),
	})
	require.NoError(t, err)
	require.True(t, updated.UnitPrice.Equal(decimal.NewFromInt(25)))

	got, err := svc.GetByID(ctx, product.ID.String())
	require.NoError(t, err)
	require.True(t, got.UnitPrice.Equal(decimal.NewFromInt(25)))

	_, err = svc.UpdatePrice(ctx, domain.UpdatePriceRequest{
		ID:        product.ID.String(),
		UnitPrice: decimal.Zero,
	})
	require.ErrorIs(t, err, domain.ErrInvalidPrice)

	_, err = svc.UpdatePrice(ctx, domain.UpdatePriceRequest{
		ID:        "999999",
		UnitPrice: decimal.NewFromInt(5),
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}
