package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallhaul/tradeledger/internal/truck/domain"
	"github.com/smallhaul/tradeledger/internal/truck/repository"
	"github.com/smallhaul/tradeledger/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTruckService(t *testing.T) domain.Service {
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

func TestCreateNormalizesPlateAndRejectsDuplicates(t *testing.T) {
	svc := newTruckService(t)
	ctx := context.Background()

	truck, err := svc.Create(ctx, domain.CreateTruckRequest{
		PlateNumber: "  ab-123-cd ",
		DriverName:  "Jo",
	})
	require.NoError(t, err)
	require.Equal(t, "AB-123-CD", truck.PlateNumber)
	require.True(t, truck.IsActive)

	_, err = svc.Create(ctx, domain.CreateTruckRequest{PlateNumber: "ab-123-cd"})
	require.ErrorIs(t, err, domain.ErrDuplicatePlate)

	_, err = svc.Create(ctx, domain.CreateTruckRequest{PlateNumber: "   "})
	require.ErrorIs(t, err, domain.ErrInvalidPlateNumber)
}

func TestDeactivateAndLookup(t *testing.T) {
	svc := newTruckService(t)
	ctx := context.Background()

	truck, err := svc.Create(ctx, domain.CreateTruckRequest{PlateNumber: "XY-1"})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, truck.ID.String()))
	got, err := svc.GetByID(ctx, truck.ID.String())
	require.NoError(t, err)
	require.False(t, got.IsActive)

	_, err = svc.GetByID(ctx, "not-an-id")
	require.ErrorIs(t, err, domain.ErrInvalidID)

	require.ErrorIs(t, svc.Deactivate(ctx, "12345"), domain.ErrNotFound)
}
