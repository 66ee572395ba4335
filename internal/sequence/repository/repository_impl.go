package repository

import (
	"context"

	"github.com/smallhaul/tradeledger/internal/sequence/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, period domain.Period) (*domain.SequenceRow, error) {
	var row domain.SequenceRow
	err := db.WithContext(ctx).Raw(
		`SELECT id, year, month, last_sequence
		 FROM invoice_number_sequences
		 WHERE year = ? AND month = ?`,
		period.Year,
		period.Month,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, row *domain.SequenceRow) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoice_number_sequences (id, year, month, last_sequence)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (year, month) DO NOTHING`,
		row.ID,
		row.Year,
		row.Month,
		row.LastSequence,
	).Error
}

// Advance bumps last_sequence from -> to with an optimistic guard so a stale
// read can never issue a duplicate.
func (r *repo) Advance(ctx context.Context, db *gorm.DB, period domain.Period, from, to int64) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invoice_number_sequences
		 SET last_sequence = ?
		 WHERE year = ? AND month = ? AND last_sequence = ?`,
		to,
		period.Year,
		period.Month,
		from,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
