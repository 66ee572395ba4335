package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Entry is one mutation to record. OldValues/NewValues are the state before
// and after; either may be nil (creations carry no old state, deletions no new
// state).
type Entry struct {
	EntityType string
	EntityID   string
	Action     string
	OldValues  map[string]any
	NewValues  map[string]any
	UserID     *string
}

type QueryRequest struct {
	EntityType string
	EntityID   string
	Action     string
	Since      *time.Time
	Limit      int
	Offset     int
}

// Service is the append-only audit trail. Append failure must fail the
// business mutation that triggered it; auditing is not best-effort here.
type Service interface {
	Append(ctx context.Context, entry Entry) (*AuditLog, error)
	Query(ctx context.Context, req QueryRequest) ([]AuditLog, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}

type ListFilter struct {
	EntityType string
	EntityID   string
	Action     string
	Since      *time.Time
	Limit      int
	Offset     int
}

var (
	ErrInvalidAction     = errors.New("invalid_action")
	ErrInvalidEntityType = errors.New("invalid_entity_type")
)
