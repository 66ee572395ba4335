package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Period is a (year, month) invoice numbering bucket.
type Period struct {
	Year  int
	Month int
}

type SequenceRow struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	Year         int          `gorm:"not null"`
	Month        int          `gorm:"not null"`
	LastSequence int64        `gorm:"not null"`
}

func (SequenceRow) TableName() string { return "invoice_number_sequences" }

// Service issues invoice numbers. A number is unique for the lifetime of the
// system: the incremented counter is persisted before the number is released,
// so a failed write never hands one out, and counters are never reused even
// when the invoice that consumed them is cancelled.
//
// Callers must hold the ledger write gate. Release hands a number back, and is
// only valid while the gate is still held and seq is the newest number issued;
// it exists so a failed invoice insert does not leave a hole in the series.
type Service interface {
	Next(ctx context.Context, period Period) (number string, seq int64, err error)
	Release(ctx context.Context, period Period, seq int64) error
}

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, period Period) (*SequenceRow, error)
	Create(ctx context.Context, db *gorm.DB, row *SequenceRow) error
	Advance(ctx context.Context, db *gorm.DB, period Period, from, to int64) (bool, error)
}

var (
	ErrInvalidPeriod   = errors.New("invalid_period")
	ErrSequenceConflict = errors.New("sequence_conflict")
)
