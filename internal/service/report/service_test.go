package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/caseops/opsboard/internal/domain"
	"github.com/caseops/opsboard/internal/repository"
)

type auditRepoStub struct {
	events    []domain.AuditEvent
	err       error
	lastQuery repository.AuditQuery
}

func (s *auditRepoStub) InsertAuditEvent(context.Context, *domain.AuditEvent) error {
	return nil
}

func (s *auditRepoStub) ListAuditEvents(_ context.Context, query repository.AuditQuery) ([]domain.AuditEvent, error) {
	s.lastQuery = query
	if s.err != nil {
		return nil, s.err
	}
	return s.events, nil
}

func TestGenerateAuditsEnvelope(t *testing.T) {
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	repo := &auditRepoStub{events: []domain.AuditEvent{
		{TenantID: "tenant-1", Action: "case.view", EntityType: "case", OccurredAt: base},
	}}
	svc := New(repo, nil, 100)
	now := time.Date(2026, time.March, 9, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	rng := ResolveRange(nil, nil, "7days", now)
	envelope := svc.Generate(context.Background(), "tenant-1", domain.ReportAudits, rng)

	if envelope.Type != domain.ReportAudits || envelope.TenantID != "tenant-1" {
		t.Fatalf("unexpected envelope header: %+v", envelope)
	}
	if envelope.Filters.StartDate == nil || *envelope.Filters.StartDate != now.Add(-7*24*time.Hour).UnixMilli() {
		t.Fatalf("unexpected start filter: %v", envelope.Filters.StartDate)
	}
	if !envelope.GeneratedAt.Equal(now) {
		t.Fatalf("unexpected generatedAt %v", envelope.GeneratedAt)
	}
	data, ok := envelope.Data.(domain.AuditReport)
	if !ok {
		t.Fatalf("expected AuditReport data, got %T", envelope.Data)
	}
	if data.Total != 1 {
		t.Fatalf("expected total 1, got %d", data.Total)
	}
	if repo.lastQuery.TenantID != "tenant-1" || repo.lastQuery.Limit != 100 {
		t.Fatalf("unexpected repo query: %+v", repo.lastQuery)
	}
}

func TestGenerateDegradesToEmptyOnReadFailure(t *testing.T) {
	repo := &auditRepoStub{err: errors.New("collection scan failed")}
	svc := New(repo, nil, 0)

	envelope := svc.Generate(context.Background(), "tenant-1", domain.ReportPerformance, Range{})

	if envelope.Data == nil {
		t.Fatal("expected empty-shaped data, got nil")
	}
	if _, ok := envelope.Data.(struct{}); !ok {
		t.Fatalf("expected empty struct data, got %T", envelope.Data)
	}
}

func TestGenerateNormalisesUnknownKind(t *testing.T) {
	repo := &auditRepoStub{}
	svc := New(repo, nil, 0)

	envelope := svc.Generate(context.Background(), "tenant-1", domain.ReportKind("bogus"), Range{})

	if envelope.Type != domain.ReportAudits {
		t.Fatalf("expected fallback to audits, got %s", envelope.Type)
	}
	if _, ok := envelope.Data.(domain.AuditReport); !ok {
		t.Fatalf("expected AuditReport data, got %T", envelope.Data)
	}
}
