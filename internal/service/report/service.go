package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/caseops/opsboard/internal/domain"
	"github.com/caseops/opsboard/internal/repository"
)

const defaultListLimit = 5000

// Filters echoes the resolved report bounds back to the caller.
type Filters struct {
	StartDate *int64 `json:"startDate"`
	EndDate   *int64 `json:"endDate"`
}

// Envelope is the dashboard-facing report payload.
type Envelope struct {
	Type        domain.ReportKind `json:"type"`
	TenantID    string            `json:"tenantId"`
	Filters     Filters           `json:"filters"`
	Data        any               `json:"data"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

// Service turns the tenant audit log into on-demand report summaries.
type Service struct {
	audits repository.AuditRepository
	logger *slog.Logger
	limit  int
	roles  map[string]struct{}
	now    func() time.Time
}

// New constructs a report Service.
func New(audits repository.AuditRepository, logger *slog.Logger, listLimit int) Service {
	if logger == nil {
		logger = slog.Default()
	}
	if listLimit <= 0 {
		listLimit = defaultListLimit
	}
	return Service{
		audits: audits,
		logger: logger,
		limit:  listLimit,
		roles:  DefaultPerformanceRoles(),
		now:    time.Now,
	}
}

// Generate builds a report for the tenant over the given range. Audit log
// read failures degrade to an empty-shaped result so dashboards render
// "no data" instead of an error.
func (s Service) Generate(ctx context.Context, tenantID string, kind domain.ReportKind, rng Range) Envelope {
	if !kind.Valid() {
		kind = domain.ReportAudits
	}
	envelope := Envelope{
		Type:        kind,
		TenantID:    tenantID,
		Filters:     filtersFromRange(rng),
		GeneratedAt: s.now().UTC(),
	}
	events, err := s.audits.ListAuditEvents(ctx, repository.AuditQuery{
		TenantID: tenantID,
		Start:    rng.Start,
		End:      rng.End,
		Limit:    s.limit,
	})
	if err != nil {
		s.logger.Warn("audit log read failed, returning empty report", "tenant_id", tenantID, "type", kind, "error", err)
		envelope.Data = struct{}{}
		return envelope
	}
	switch kind {
	case domain.ReportPerformance:
		envelope.Data = BuildPerformanceReport(events, s.roles)
	case domain.ReportUserManagement:
		envelope.Data = BuildUserManagementReport(events)
	default:
		envelope.Data = BuildAuditReport(events)
	}
	return envelope
}

func filtersFromRange(rng Range) Filters {
	var f Filters
	if rng.Start != nil {
		start := rng.Start.UnixMilli()
		f.StartDate = &start
	}
	if rng.End != nil {
		end := rng.End.UnixMilli()
		f.EndDate = &end
	}
	return f
}
