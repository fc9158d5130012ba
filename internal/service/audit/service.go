package audit

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/caseops/opsboard/internal/domain"
	"github.com/caseops/opsboard/internal/repository"
)

// Service appends to and reads the tenant audit log on behalf of sibling
// services. The log itself is append-only; nothing here mutates records.
type Service struct {
	repo   repository.AuditRepository
	logger *slog.Logger
	now    func() time.Time
}

// New constructs an audit Service.
func New(repo repository.AuditRepository, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{repo: repo, logger: logger, now: time.Now}
}

// Record validates and appends one audit event. Missing IDs and timestamps
// are filled in; tenant and action are required.
func (s Service) Record(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	event.TenantID = strings.TrimSpace(event.TenantID)
	event.Action = strings.TrimSpace(event.Action)
	if event.TenantID == "" {
		return domain.AuditEvent{}, errors.New("tenant_id required")
	}
	if event.Action == "" {
		return domain.AuditEvent{}, errors.New("action required")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	} else {
		event.OccurredAt = event.OccurredAt.UTC()
	}
	if err := s.repo.InsertAuditEvent(ctx, &event); err != nil {
		return domain.AuditEvent{}, err
	}
	return event, nil
}

// List returns audit records for a tenant within the given bounds.
func (s Service) List(ctx context.Context, query repository.AuditQuery) ([]domain.AuditEvent, error) {
	return s.repo.ListAuditEvents(ctx, query)
}
