package domain

import "time"

// MetricsSnapshot is a point-in-time view of tenant health and usage.
// It is produced fresh on every collection cycle and only persisted
// through a TimeBucket.
type MetricsSnapshot struct {
	Users        int
	Sessions     int
	UptimePct    float64
	AlertCount   int
	StorageOK    bool
	AuthOK       bool
	APILatencyMS float64
}

// TimeBucket is the durable aggregation unit: one snapshot per tenant per
// minute. Writes to the same (tenant, bucket start) key overwrite, they do
// not accumulate.
type TimeBucket struct {
	TenantID     string
	BucketStart  time.Time
	Users        int
	Sessions     int
	UptimePct    float64
	AlertCount   int
	StorageOK    bool
	AuthOK       bool
	APILatencyMS float64
	UpdatedAt    time.Time
}

// Snapshot reconstructs the snapshot stored in the bucket.
func (b TimeBucket) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Users:        b.Users,
		Sessions:     b.Sessions,
		UptimePct:    b.UptimePct,
		AlertCount:   b.AlertCount,
		StorageOK:    b.StorageOK,
		AuthOK:       b.AuthOK,
		APILatencyMS: b.APILatencyMS,
	}
}

// MetricSeries holds chart-ready arrays, one entry per minute in
// chronological order. All slices always have the same length.
type MetricSeries struct {
	Users        []int     `json:"users"`
	Uptime       []float64 `json:"uptime"`
	Alerts       []int     `json:"alerts"`
	Sessions     []int     `json:"sessions"`
	StorageOK    []bool    `json:"storageOk"`
	AuthOK       []bool    `json:"authOk"`
	APILatencyMS []float64 `json:"apiLatencyMs"`
}
