package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallhaul/tradeledger/internal/sequence/domain"
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
		log:   p.Log.Named("sequence.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Next(ctx context.Context, period domain.Period) (string, int64, error) {
	if period.Year < 1 || period.Month < 1 || period.Month > 12 {
		return "", 0, domain.ErrInvalidPeriod
	}

	row, err := s.repo.Find(ctx, s.db, period)
	if err != nil {
		return "", 0, err
	}
	if row == nil {
		// Lazy creation at 0; ON CONFLICT keeps an already-present row intact.
		if err := s.repo.Create(ctx, s.db, &domain.SequenceRow{
			ID:    s.genID.Generate(),
			Year:  period.Year,
			Month: period.Month,
		}); err != nil {
			return "", 0, err
		}
		row, err = s.repo.Find(ctx, s.db, period)
		if err != nil {
			return "", 0, err
		}
		if row == nil {
			return "", 0, domain.ErrSequenceConflict
		}
	}

	next := row.LastSequence + 1
	advanced, err := s.repo.Advance(ctx, s.db, period, row.LastSequence, next)
	if err != nil {
		return "", 0, err
	}
	if !advanced {
		// The counter moved under us. Callers hold the write gate, so this
		// means the gate discipline was violated somewhere.
		s.log.Error("sequence advance lost its guard",
			zap.Int("year", period.Year),
			zap.Int("month", period.Month),
		)
		return "", 0, domain.ErrSequenceConflict
	}

	return Format(period, next), next, nil
}

func (s *Service) Release(ctx context.Context, period domain.Period, seq int64) error {
	if seq < 1 {
		return domain.ErrInvalidPeriod
	}
	reverted, err := s.repo.Advance(ctx, s.db, period, seq, seq-1)
	if err != nil {
		return err
	}
	if !reverted {
		// Someone issued past us while we still held the gate. The number
		// stays consumed; a gap is better than reusing it.
		s.log.Error("sequence release skipped, counter moved on",
			zap.Int("year", period.Year),
			zap.Int("month", period.Month),
			zap.Int64("seq", seq),
		)
		return domain.ErrSequenceConflict
	}
	return nil
}

// Format renders INV-YYYY-MM-NNN. The sequence is zero-padded to three digits
// and widens on its own past 999.
func Format(period domain.Period, seq int64) string {
	return fmt.Sprintf("INV-%04d-%02d-%03d", period.Year, period.Month, seq)
}
