package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallhaul/tradeledger/internal/sequence/domain"
	"github.com/smallhaul/tradeledger/internal/sequence/repository"
	"github.com/smallhaul/tradeledger/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Bootstrap(gdb))
	return gdb
}

func newSequenceService(t *testing.T, gdb *gorm.DB) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewService(Params{
		DB:    gdb,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
}

func TestNextStartsAtOneAndIncrements(t *testing.T) {
	gdb := newTestDB(t)
	svc := newSequenceService(t, gdb)
	ctx := context.Background()
	period := domain.Period{Year: 2025, Month: 3}

	number, seq, err := svc.Next(ctx, period)
	require.NoError(t, err)
	require.Equal(t, "INV-2025-03-001", number)
	require.Equal(t, int64(1), seq)

	number, seq, err = svc.Next(ctx, period)
	require.NoError(t, err)
	require.Equal(t, "INV-2025-03-002", number)
	require.Equal(t, int64(2), seq)
}

func TestNextKeepsPeriodsIndependent(t *testing.T) {
	gdb := newTestDB(t)
	svc := newSequenceService(t, gdb)
	ctx := context.Background()

	number, _, err := svc.Next(ctx, domain.Period{Year: 2025, Month: 3})
	require.NoError(t, err)
	require.Equal(t, "INV-2025-03-001", number)

	number, _, err = svc.Next(ctx, domain.Period{Year: 2025, Month: 4})
	require.NoError(t, err)
	require.Equal(t, "INV-2025-04-001", number)

	number, _, err = svc.Next(ctx, domain.Period{Year: 2026, Month: 3})
	require.NoError(t, err)
	require.Equal(t, "INV-2026-03-001", number)
}

func TestNextWidensPastThreeDigits(t *testing.T) {
	gdb := newTestDB(t)
	svc := newSequenceService(t, gdb)
	ctx := context.Background()
	period := domain.Period{Year: 2025, Month: 3}

	_, _, err := svc.Next(ctx, period)
	require.NoError(t, err)
	require.NoError(t, gdb.Exec(
		`UPDATE invoice_number_sequences SET last_sequence = 999 WHERE year = 2025 AND month = 3`,
	).Error)

	number, seq, err := svc.Next(ctx, period)
	require.NoError(t, err)
	require.Equal(t, "INV-2025-03-1000", number)
	require.Equal(t, int64(1000), seq)
}

func TestNextRejectsInvalidPeriod(t *testing.T) {
	gdb := newTestDB(t)
	svc := newSequenceService(t, gdb)

	_, _, err := svc.Next(context.Background(), domain.Period{Year: 2025, Month: 13})
	require.ErrorIs(t, err, domain.ErrInvalidPeriod)

	_, _, err = svc.Next(context.Background(), domain.Period{Year: 0, Month: 1})
	require.ErrorIs(t, err, domain.ErrInvalidPeriod)
}

func TestReleaseHandsBackTheNewestNumber(t *testing.T) {
	gdb := newTestDB(t)
	svc := newSequenceService(t, gdb)
	ctx := context.Background()
	period := domain.Period{Year: 2025, Month: 3}

	_, seq, err := svc.Next(ctx, period)
	require.NoError(t, err)

	require.NoError(t, svc.Release(ctx, period, seq))

	number, seq, err := svc.Next(ctx, period)
	require.NoError(t, err)
	require.Equal(t, "INV-2025-03-001", number)
	require.Equal(t, int64(1), seq)
}

func TestReleaseRefusesAStaleNumber(t *testing.T) {
	gdb := newTestDB(t)
	svc := newSequenceService(t, gdb)
	ctx := context.Background()
	period := domain.Period{Year: 2025, Month: 3}

	_, first, err := svc.Next(ctx, period)
	require.NoError(t, err)
	_, _, err = svc.Next(ctx, period)
	require.NoError(t, err)

	require.ErrorIs(t, svc.Release(ctx, period, first), domain.ErrSequenceConflict)
}
