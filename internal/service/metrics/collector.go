package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/caseops/opsboard/internal/domain"
)

// Probe failure defaults. Latency sits mid-range so chart scales stay stable
// when the probe is down.
const (
	defaultProbeTimeout = 2 * time.Second
	defaultLatencyMS    = 250.0
	minLatencyMS        = 20.0
	maxLatencyMS        = 500.0
	uptimeHealthy       = 100.0
	uptimePenalty       = 5.0
)

// Probes is the fixed set of independent data sources folded into one
// snapshot. Entries may be nil; a nil or failing probe degrades to its
// conservative default instead of failing the collection.
type Probes struct {
	ActiveUsers    func(ctx context.Context, tenantID string) (int, error)
	ActiveSessions func(ctx context.Context, tenantID string) (int, error)
	OpenAlerts     func(ctx context.Context, tenantID string) (int, error)
	StorageHealthy func(ctx context.Context) error
	AuthHealthy    func(ctx context.Context) error
	APILatencyMS   func(ctx context.Context) (float64, error)
}

// Collector fans probes out concurrently and folds their results.
type Collector struct {
	probes  Probes
	timeout time.Duration
	logger  *slog.Logger
}

// NewCollector constructs a Collector. Each probe gets its own timeout so a
// single slow dependency cannot stall the whole snapshot.
func NewCollector(probes Probes, timeout time.Duration, logger *slog.Logger) *Collector {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{probes: probes, timeout: timeout, logger: logger}
}

// probeResult tags one probe outcome: the probed value, or the fallback when
// the probe was missing, timed out, or errored.
type probeResult[T any] struct {
	value  T
	failed bool
}

func runProbe[T any](ctx context.Context, timeout time.Duration, name string, logger *slog.Logger, fallback T, fn func(context.Context) (T, error)) probeResult[T] {
	if fn == nil {
		return probeResult[T]{value: fallback, failed: true}
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	value, err := fn(probeCtx)
	if err != nil {
		logger.Warn("metrics probe failed", "probe", name, "error", err)
		return probeResult[T]{value: fallback, failed: true}
	}
	return probeResult[T]{value: value}
}

// Collect waits for all probes and returns a complete snapshot. It never
// propagates an individual probe's failure to the caller.
func (c *Collector) Collect(ctx context.Context, tenantID string) domain.MetricsSnapshot {
	var (
		wg                      sync.WaitGroup
		users, sessions, alerts probeResult[int]
		storage, auth           probeResult[bool]
		latency                 probeResult[float64]
	)
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}
	run(func() {
		users = runProbe(ctx, c.timeout, "active_users", c.logger, 0, tenantCount(tenantID, c.probes.ActiveUsers))
	})
	run(func() {
		sessions = runProbe(ctx, c.timeout, "active_sessions", c.logger, 0, tenantCount(tenantID, c.probes.ActiveSessions))
	})
	run(func() {
		alerts = runProbe(ctx, c.timeout, "open_alerts", c.logger, 0, tenantCount(tenantID, c.probes.OpenAlerts))
	})
	run(func() {
		storage = runProbe(ctx, c.timeout, "storage_health", c.logger, false, healthCheck(c.probes.StorageHealthy))
	})
	run(func() {
		auth = runProbe(ctx, c.timeout, "auth_health", c.logger, false, healthCheck(c.probes.AuthHealthy))
	})
	run(func() {
		latency = runProbe(ctx, c.timeout, "api_latency", c.logger, defaultLatencyMS, c.probes.APILatencyMS)
	})
	wg.Wait()

	uptime := uptimeHealthy
	if !storage.value {
		uptime -= uptimePenalty
	}
	if !auth.value {
		uptime -= uptimePenalty
	}
	return domain.MetricsSnapshot{
		Users:        users.value,
		Sessions:     sessions.value,
		UptimePct:    uptime,
		AlertCount:   alerts.value,
		StorageOK:    storage.value,
		AuthOK:       auth.value,
		APILatencyMS: clampLatency(latency.value),
	}
}

func tenantCount(tenantID string, fn func(context.Context, string) (int, error)) func(context.Context) (int, error) {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context) (int, error) {
		return fn(ctx, tenantID)
	}
}

func healthCheck(fn func(context.Context) error) func(context.Context) (bool, error) {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context) (bool, error) {
		if err := fn(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
}

func clampLatency(ms float64) float64 {
	if ms < minLatencyMS {
		return minLatencyMS
	}
	if ms > maxLatencyMS {
		return maxLatencyMS
	}
	return ms
}
