package db

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/smallhaul/tradeledger/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open opens the embedded sqlite database with a single connection so that
// individual statement execution is serialized by the pool itself.
func Open(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.DBPath)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.DBPath, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := Bootstrap(gdb); err != nil {
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	log.Info("database ready", zap.String("path", cfg.DBPath))
	return gdb, nil
}

// Changes returns sqlite's total_changes() counter: a monotonic count of rows
// inserted, updated or deleted on this connection since it was opened.
func Changes(gdb *gorm.DB) (int64, error) {
	var n int64
	if err := gdb.Raw(`SELECT total_changes()`).Scan(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func registerHooks(lc fx.Lifecycle, gdb *gorm.DB, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			log.Info("closing database")
			return sqlDB.Close()
		},
	})
}

var Module = fx.Module("db",
	fx.Provide(Open),
	fx.Provide(NewWriteGate),
	fx.Invoke(registerHooks),
)
