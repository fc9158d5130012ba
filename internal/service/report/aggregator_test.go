package report

import (
	"testing"
	"time"

	"github.com/caseops/opsboard/internal/domain"
)

func eventAt(at time.Time, action, entityType string) domain.AuditEvent {
	return domain.AuditEvent{
		ID:         "evt-" + at.Format("150405"),
		TenantID:   "tenant-1",
		Action:     action,
		EntityType: entityType,
		OccurredAt: at,
	}
}

func TestBuildAuditReportGroupsAndCounts(t *testing.T) {
	base := time.Date(2026, time.January, 1, 10, 0, 0, 0, time.UTC)
	events := []domain.AuditEvent{
		eventAt(base, "case.update", "case"),
		eventAt(base.Add(time.Hour), "case.update", "case"),
		eventAt(base.Add(2*time.Hour), "note.create", ""),
	}

	report := BuildAuditReport(events)

	if report.Total != 3 {
		t.Fatalf("expected total 3, got %d", report.Total)
	}
	if report.ByAction["case.update"] != 2 || report.ByAction["note.create"] != 1 {
		t.Fatalf("unexpected byAction: %v", report.ByAction)
	}
	// Records with no entity type are excluded from the entity grouping.
	if len(report.ByEntityType) != 1 || report.ByEntityType["case"] != 2 {
		t.Fatalf("unexpected byEntityType: %v", report.ByEntityType)
	}
	if len(report.Rows) != 3 {
		t.Fatalf("expected rows echoed back, got %d", len(report.Rows))
	}
}

func TestDailySeriesBucketsByLocalDay(t *testing.T) {
	jan1Morning := time.Date(2026, time.January, 1, 10, 0, 0, 0, time.UTC)
	jan1Evening := time.Date(2026, time.January, 1, 23, 0, 0, 0, time.UTC)
	jan2 := time.Date(2026, time.January, 2, 0, 1, 0, 0, time.UTC)
	events := []domain.AuditEvent{
		eventAt(jan1Morning, "case.view", "case"),
		eventAt(jan1Evening, "case.view", "case"),
		eventAt(jan2, "case.view", "case"),
	}

	series := DailySeries(events)

	if len(series) != 2 {
		t.Fatalf("expected 2 daily buckets, got %d", len(series))
	}
	jan1Start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	jan2Start := time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC).UnixMilli()
	if series[0].DateMS != jan1Start || series[0].Count != 2 {
		t.Fatalf("unexpected first bucket: %+v", series[0])
	}
	if series[1].DateMS != jan2Start || series[1].Count != 1 {
		t.Fatalf("unexpected second bucket: %+v", series[1])
	}
}

func TestBuildPerformanceReportFiltersRoles(t *testing.T) {
	base := time.Date(2026, time.February, 3, 9, 0, 0, 0, time.UTC)
	events := []domain.AuditEvent{
		{
			TenantID:   "tenant-1",
			ActorID:    "staff-1",
			ActorEmail: "jo@example.org",
			ActorRole:  domain.RoleSupportWorker,
			Action:     "case.update",
			EntityType: "case",
			OccurredAt: base,
		},
		{
			TenantID:   "tenant-1",
			ActorID:    "staff-1",
			ActorRole:  domain.RoleSupportWorker,
			Action:     "note.create",
			OccurredAt: base.Add(time.Minute),
		},
		{
			TenantID:   "tenant-1",
			ActorID:    "admin-1",
			ActorRole:  domain.RoleAdmin,
			Action:     "user.create",
			EntityType: "user",
			OccurredAt: base.Add(2 * time.Minute),
		},
	}

	report := BuildPerformanceReport(events, DefaultPerformanceRoles())

	if len(report.ByActor) != 1 {
		t.Fatalf("expected only the support worker, got %d actors", len(report.ByActor))
	}
	summary := report.ByActor["staff-1"]
	if summary == nil {
		t.Fatal("expected summary keyed by actor id")
	}
	if summary.TotalActions != 2 {
		t.Fatalf("expected 2 actions, got %d", summary.TotalActions)
	}
	if summary.ByAction["case.update"] != 1 || summary.ByAction["note.create"] != 1 {
		t.Fatalf("unexpected byAction: %v", summary.ByAction)
	}
	if summary.ByEntityType["case"] != 1 || len(summary.ByEntityType) != 1 {
		t.Fatalf("unexpected byEntityType: %v", summary.ByEntityType)
	}
	if summary.Actor.Email != "jo@example.org" {
		t.Fatalf("unexpected actor meta: %+v", summary.Actor)
	}
}

func TestBuildPerformanceReportActorKeyFallback(t *testing.T) {
	events := []domain.AuditEvent{
		{ActorEmail: "anon@example.org", ActorRole: domain.RoleCaseWorker, Action: "case.view"},
		{ActorName: "Sam", ActorRole: domain.RoleCaseWorker, Action: "case.view"},
		{ActorRole: domain.RoleCaseWorker, Action: "case.view"},
	}

	report := BuildPerformanceReport(events, DefaultPerformanceRoles())

	for _, key := range []string{"anon@example.org", "Sam", "unknown"} {
		if report.ByActor[key] == nil {
			t.Fatalf("expected actor keyed %q, got %v", key, report.ByActor)
		}
	}
}

func TestBuildUserManagementReportFilters(t *testing.T) {
	base := time.Date(2026, time.February, 3, 9, 0, 0, 0, time.UTC)
	events := []domain.AuditEvent{
		eventAt(base, "user.create", "user"),
		eventAt(base.Add(time.Minute), "user.deactivate", ""),
		eventAt(base.Add(2*time.Minute), "case.update", "case"),
	}

	report := BuildUserManagementReport(events)

	if report.Total != 2 {
		t.Fatalf("expected 2 user-management records, got %d", report.Total)
	}
	if _, ok := report.ByAction["case.update"]; ok {
		t.Fatal("case activity leaked into user-management report")
	}
}
