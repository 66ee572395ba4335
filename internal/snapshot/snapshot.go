package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/smallhaul/tradeledger/internal/clock"
	"github.com/smallhaul/tradeledger/internal/config"
	"github.com/smallhaul/tradeledger/internal/metrics"
	"github.com/smallhaul/tradeledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Runner writes periodic backups of the embedded database. VACUUM INTO runs
// under the write gate so a snapshot can never cut through a half-finished
// multi-step operation; it only ever lands between operations.
type Runner struct {
	db      *gorm.DB
	log     *zap.Logger
	cfg     config.Config
	gate    *db.WriteGate
	clock   clock.Clock
	metrics *metrics.Metrics

	lastChanges int64
	cancel      context.CancelFunc
	done        chan struct{}
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Cfg     config.Config
	Gate    *db.WriteGate
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

func NewRunner(p Params) *Runner {
	return &Runner{
		db:      p.DB,
		log:     p.Log.Named("snapshot"),
		cfg:     p.Cfg,
		gate:    p.Gate,
		clock:   p.Clock,
		metrics: p.Metrics,
		done:    make(chan struct{}),
	}
}

// Snapshot takes one backup now, unless nothing changed since the last one.
func (r *Runner) Snapshot(ctx context.Context) (string, error) {
	changes, err := db.Changes(r.db)
	if err != nil {
		return "", err
	}
	if changes == r.lastChanges {
		return "", nil
	}

	if err := os.MkdirAll(r.cfg.SnapshotDir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("tradeledger-%s.db", r.clock.Now().Format("20060102T150405"))
	path := filepath.Join(r.cfg.SnapshotDir, name)

	err = r.gate.Do(func() error {
		return r.db.WithContext(ctx).Exec(`VACUUM INTO ?`, path).Error
	})
	if err != nil {
		if r.metrics != nil {
			r.metrics.SnapshotFailures.Inc()
		}
		return "", err
	}

	r.lastChanges = changes
	if r.metrics != nil {
		r.metrics.SnapshotsTotal.Inc()
	}
	if err := r.prune(); err != nil {
		r.log.Warn("snapshot prune failed", zap.Error(err))
	}

	r.log.Info("snapshot written", zap.String("path", path))
	return path, nil
}

// prune keeps the newest SnapshotKeep files and removes the rest.
func (r *Runner) prune() error {
	if r.cfg.SnapshotKeep <= 0 {
		return nil
	}
	entries, err := os.ReadDir(r.cfg.SnapshotDir)
	if err != nil {
		return err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), "tradeledger-") && strings.HasSuffix(entry.Name(), ".db") {
			names = append(names, entry.Name())
		}
	}
	if len(names) <= r.cfg.SnapshotKeep {
		return nil
	}
	sort.Strings(names)
	for _, name := range names[:len(names)-r.cfg.SnapshotKeep] {
		if err := os.Remove(filepath.Join(r.cfg.SnapshotDir, name)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.cfg.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Snapshot(ctx); err != nil {
				r.log.Error("snapshot failed", zap.Error(err))
			}
		}
	}
}

func registerHooks(lc fx.Lifecycle, r *Runner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			r.cancel = cancel
			go r.loop(ctx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if r.cancel != nil {
				r.cancel()
			}
			select {
			case <-r.done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}

var Module = fx.Module("snapshot",
	fx.Provide(NewRunner),
	fx.Invoke(registerHooks),
)
