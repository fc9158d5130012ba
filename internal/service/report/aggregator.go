package report

import (
	"sort"
	"strings"
	"time"

	"github.com/caseops/opsboard/internal/domain"
)

// DefaultPerformanceRoles is the allow-set of line-staff roles included in
// performance rollups. Administrators and managers are excluded.
func DefaultPerformanceRoles() map[string]struct{} {
	return map[string]struct{}{
		domain.RoleSupportWorker: {},
		domain.RoleCaseWorker:    {},
	}
}

// BuildAuditReport summarises already-scoped audit records: totals, counts
// grouped by action and entity type, a daily series, and the rows themselves.
func BuildAuditReport(events []domain.AuditEvent) domain.AuditReport {
	report := domain.AuditReport{
		Total:        len(events),
		ByAction:     make(map[string]int),
		ByEntityType: make(map[string]int),
		Series:       DailySeries(events),
		Rows:         events,
	}
	for _, event := range events {
		report.ByAction[event.Action]++
		if event.EntityType != "" {
			report.ByEntityType[event.EntityType]++
		}
	}
	return report
}

// BuildUserManagementReport restricts the audit report to user-management
// records: anything touching a user entity or a user.* action.
func BuildUserManagementReport(events []domain.AuditEvent) domain.AuditReport {
	filtered := make([]domain.AuditEvent, 0, len(events))
	for _, event := range events {
		if event.EntityType == "user" || strings.HasPrefix(event.Action, "user.") {
			filtered = append(filtered, event)
		}
	}
	return BuildAuditReport(filtered)
}

// BuildPerformanceReport groups audit activity by actor, restricted to the
// given role allow-set. Actors are keyed by id, falling back to email, then
// display name, then "unknown".
func BuildPerformanceReport(events []domain.AuditEvent, allowedRoles map[string]struct{}) domain.PerformanceReport {
	report := domain.PerformanceReport{ByActor: make(map[string]*domain.ActorSummary)}
	for _, event := range events {
		if _, ok := allowedRoles[event.ActorRole]; !ok {
			continue
		}
		key := actorKey(event)
		summary := report.ByActor[key]
		if summary == nil {
			summary = &domain.ActorSummary{
				Actor: domain.ActorMeta{
					ID:    event.ActorID,
					Email: event.ActorEmail,
					Name:  event.ActorName,
					Role:  event.ActorRole,
				},
				ByAction:     make(map[string]int),
				ByEntityType: make(map[string]int),
			}
			report.ByActor[key] = summary
		}
		summary.TotalActions++
		summary.ByAction[event.Action]++
		if event.EntityType != "" {
			summary.ByEntityType[event.EntityType]++
		}
	}
	return report
}

// DailySeries buckets events by start of local day and returns the counts
// sorted ascending by day. Truncate-and-group, not a sliding window.
func DailySeries(events []domain.AuditEvent) []domain.DailyCount {
	counts := make(map[int64]int)
	for _, event := range events {
		t := event.OccurredAt
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		counts[day.UnixMilli()]++
	}
	series := make([]domain.DailyCount, 0, len(counts))
	for dateMS, count := range counts {
		series = append(series, domain.DailyCount{DateMS: dateMS, Count: count})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].DateMS < series[j].DateMS })
	return series
}

func actorKey(event domain.AuditEvent) string {
	switch {
	case event.ActorID != "":
		return event.ActorID
	case event.ActorEmail != "":
		return event.ActorEmail
	case event.ActorName != "":
		return event.ActorName
	default:
		return "unknown"
	}
}
