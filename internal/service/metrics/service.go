package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/caseops/opsboard/internal/domain"
	"github.com/caseops/opsboard/internal/repository"
	"github.com/caseops/opsboard/internal/ws"
)

// Service runs the real-time dashboard path: collect a snapshot, persist it
// into the current minute's bucket, reconstruct the chart series, and stream
// the fresh snapshot to live subscribers.
type Service struct {
	buckets     repository.BucketRepository
	collector   *Collector
	coordinator *WriteCoordinator
	hub         *ws.Hub
	logger      *slog.Logger
	now         func() time.Time
}

// New constructs a metrics Service.
func New(buckets repository.BucketRepository, collector *Collector, coordinator *WriteCoordinator, hub *ws.Hub, logger *slog.Logger) Service {
	if hub == nil {
		hub = ws.NewHub()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return Service{
		buckets:     buckets,
		collector:   collector,
		coordinator: coordinator,
		hub:         hub,
		logger:      logger,
		now:         time.Now,
	}
}

// Series returns exactly K points per metric for the tenant, where K is
// derived from the window token. Store failures degrade to a synthetic
// flat series built from the just-collected snapshot; this never errors.
func (s Service) Series(ctx context.Context, tenantID, windowToken string) domain.MetricSeries {
	samples := ParseWindow(windowToken)
	snapshot := s.collector.Collect(ctx, tenantID)
	s.coordinator.Persist(ctx, tenantID, snapshot)

	buckets, err := s.buckets.ListRecentBuckets(ctx, tenantID, samples)
	if err != nil {
		s.logger.Warn("bucket read failed, serving synthetic series", "tenant_id", tenantID, "error", err)
		buckets = nil
	}
	s.broadcast(tenantID, snapshot)
	return BuildSeries(buckets, samples, snapshot)
}

// Hub exposes the streaming hub for WebSocket/SSE handlers.
func (s Service) Hub() *ws.Hub {
	return s.hub
}

func (s Service) broadcast(tenantID string, snapshot domain.MetricsSnapshot) {
	payload, err := MarshalSnapshot(tenantID, snapshot, s.now())
	if err != nil {
		s.logger.Warn("failed to marshal snapshot payload", "error", err)
		return
	}
	s.hub.Broadcast(tenantID, payload)
}

// MarshalSnapshot formats a snapshot for streaming payloads.
func MarshalSnapshot(tenantID string, snapshot domain.MetricsSnapshot, at time.Time) ([]byte, error) {
	payload := map[string]any{
		"tenant_id":    tenantID,
		"users":        snapshot.Users,
		"sessions":     snapshot.Sessions,
		"uptime":       snapshot.UptimePct,
		"alerts":       snapshot.AlertCount,
		"storageOk":    snapshot.StorageOK,
		"authOk":       snapshot.AuthOK,
		"apiLatencyMs": snapshot.APILatencyMS,
		"collected_at": at.UTC().Format(time.RFC3339Nano),
	}
	return json.Marshal(payload)
}
