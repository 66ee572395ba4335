package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallhaul/tradeledger/internal/audit/domain"
	"github.com/smallhaul/tradeledger/internal/auditctx"
	"github.com/smallhaul/tradeledger/internal/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    auditdomain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    auditdomain.Repository
	metrics *metrics.Metrics
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("audit.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) Append(ctx context.Context, entry auditdomain.Entry) (*auditdomain.AuditLog, error) {
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return nil, auditdomain.ErrInvalidAction
	}
	entityType := strings.TrimSpace(entry.EntityType)
	if entityType == "" {
		return nil, auditdomain.ErrInvalidEntityType
	}

	userID := entry.UserID
	if userID == nil {
		if ctxUser := auditctx.UserIDFromContext(ctx); ctxUser != "" {
			userID = &ctxUser
		}
	}

	oldValues, err := marshalValues(entry.OldValues)
	if err != nil {
		return nil, err
	}
	newValues, err := marshalValues(withRequestID(ctx, entry.NewValues))
	if err != nil {
		return nil, err
	}

	row := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		EntityType: entityType,
		EntityID:   strings.TrimSpace(entry.EntityID),
		Action:     action,
		OldValues:  oldValues,
		NewValues:  newValues,
		UserID:     normalizePointer(userID),
		Timestamp:  time.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, s.db, &row); err != nil {
		s.log.Error("failed to write audit log", zap.String("action", action), zap.Error(err))
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.AuditEntriesTotal.Inc()
	}
	return &row, nil
}

func (s *Service) Query(ctx context.Context, req auditdomain.QueryRequest) ([]auditdomain.AuditLog, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 250 {
		limit = 250
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Action:     req.Action,
		Since:      req.Since,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, err
	}

	logs := make([]auditdomain.AuditLog, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}
	return logs, nil
}

func withRequestID(ctx context.Context, values map[string]any) map[string]any {
	requestID := auditctx.RequestIDFromContext(ctx)
	if requestID == "" {
		return values
	}
	merged := map[string]any{"request_id": requestID}
	for key, value := range values {
		if key == "" {
			continue
		}
		merged[key] = value
	}
	return merged
}

func marshalValues(values map[string]any) (datatypes.JSON, error) {
	if len(values) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func normalizePointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
