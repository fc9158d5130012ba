package domain

// ReportKind selects the aggregation applied to the audit log.
type ReportKind string

const (
	ReportAudits         ReportKind = "audits"
	ReportPerformance    ReportKind = "performance"
	ReportUserManagement ReportKind = "userManagement"
)

// Valid reports whether the kind is one of the supported report types.
func (k ReportKind) Valid() bool {
	switch k {
	case ReportAudits, ReportPerformance, ReportUserManagement:
		return true
	}
	return false
}

// DailyCount is one point of a date-bucketed series. DateMS is the epoch
// millisecond timestamp of the start of the local day.
type DailyCount struct {
	DateMS int64 `json:"dateMs"`
	Count  int   `json:"count"`
}

// AuditReport summarises a slice of the audit log.
type AuditReport struct {
	Total        int            `json:"total"`
	ByAction     map[string]int `json:"byAction"`
	ByEntityType map[string]int `json:"byEntityType"`
	Series       []DailyCount   `json:"series"`
	Rows         []AuditEvent   `json:"rows,omitempty"`
}

// ActorMeta identifies the staff member behind a performance rollup.
type ActorMeta struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

// ActorSummary accumulates per-staff activity counts.
type ActorSummary struct {
	Actor        ActorMeta      `json:"actor"`
	TotalActions int            `json:"totalActions"`
	ByAction     map[string]int `json:"byAction"`
	ByEntityType map[string]int `json:"byEntityType"`
}

// PerformanceReport groups audit activity by actor.
type PerformanceReport struct {
	ByActor map[string]*ActorSummary `json:"byActor"`
}
