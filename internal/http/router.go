package httpx

import (
	"bufio"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/caseops/opsboard/internal/domain"
	"github.com/caseops/opsboard/internal/repository"
	auditsvc "github.com/caseops/opsboard/internal/service/audit"
	authsvc "github.com/caseops/opsboard/internal/service/auth"
	metricsvc "github.com/caseops/opsboard/internal/service/metrics"
	reportsvc "github.com/caseops/opsboard/internal/service/report"
	"github.com/caseops/opsboard/internal/ws"
)

const (
	rateLimitSeriesRead  = 120
	rateLimitReportRead  = 30
	rateLimitIngestWrite = 300
	rateLimitStream      = 20

	rateWindowDefault = time.Minute

	sseHeartbeatInterval = 25 * time.Second
)

// Router wires HTTP handlers to the dashboard services.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	auth     authsvc.Service
	metrics  metricsvc.Service
	reports  reportsvc.Service
	auditlog auditsvc.Service
	limiter  RateLimiter
	upgrader websocket.Upgrader

	ingestToken    string
	auditListLimit int
	dbPing         func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

// RouterOptions carries the router dependencies.
type RouterOptions struct {
	Logger         *slog.Logger
	Auth           authsvc.Service
	Metrics        metricsvc.Service
	Reports        reportsvc.Service
	Audit          auditsvc.Service
	Limiter        RateLimiter
	IngestToken    string
	AuditListLimit int
	DBPing         func(context.Context) error
}

// NewRouter builds the router and registers all routes.
func NewRouter(opts RouterOptions) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		mux:      http.NewServeMux(),
		logger:   logger,
		auth:     opts.Auth,
		metrics:  opts.Metrics,
		reports:  opts.Reports,
		auditlog: opts.Audit,
		limiter:  opts.Limiter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		ingestToken:    opts.IngestToken,
		auditListLimit: opts.AuditListLimit,
		dbPing:         opts.DBPing,
	}
	r.initMetrics()
	r.register()
	return r
}

// Handler exposes the underlying mux.
func (r *Router) Handler() http.Handler {
	return r.mux
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit(r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/metrics/series", r.audit(r.handlerAuthRate("metrics_series", rateLimitSeriesRead, rateWindowDefault, r.requireAdmin(r.handleMetricsSeries))))
	r.mux.HandleFunc("/reports", r.audit(r.handlerAuthRate("reports", rateLimitReportRead, rateWindowDefault, r.requireAdmin(r.handleReports))))
	r.mux.HandleFunc("/audit/events", r.audit(r.handleAuditEvents))
	r.mux.HandleFunc("/ws/metrics", r.audit(r.handlerAuthRate("ws_metrics", rateLimitStream, rateWindowDefault, r.requireAdmin(r.handleMetricsWS))))
	r.mux.HandleFunc("/sse/metrics", r.audit(r.handlerAuthRate("sse_metrics", rateLimitStream, rateWindowDefault, r.requireAdmin(r.handleMetricsSSE))))
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := "ok"
	code := http.StatusOK
	if r.dbPing != nil {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := r.dbPing(ctx); err != nil {
			r.logger.Error("health check database ping failed", "error", err)
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]string{"status": status})
}

func (r *Router) handleMetricsSeries(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	if info.TenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant association required")
		return
	}
	series := r.metrics.Series(req.Context(), info.TenantID, req.URL.Query().Get("window"))
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, series)
}

func (r *Router) handleReports(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	if info.TenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant association required")
		return
	}
	query := req.URL.Query()
	kind := domain.ReportKind(strings.TrimSpace(query.Get("type")))
	rng := reportsvc.ResolveRange(
		parseEpochMS(query.Get("startDate")),
		parseEpochMS(query.Get("endDate")),
		query.Get("range"),
		time.Now(),
	)
	envelope := r.reports.Generate(req.Context(), info.TenantID, kind, rng)
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, envelope)
}

func (r *Router) handleAuditEvents(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodPost:
		r.handleAuditIngest(w, req)
	case http.MethodGet:
		r.handleAuditList(w, req)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type auditIngestRequest struct {
	TenantID   string `json:"tenant_id"`
	ActorID    string `json:"actor_id"`
	Action     string `json:"action"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	OccurredAt string `json:"occurred_at"`
}

func (r *Router) handleAuditIngest(w http.ResponseWriter, req *http.Request) {
	if !r.verifyIngestToken(w, req) {
		return
	}
	var payload auditIngestRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if r.limiter != nil {
		key := "ingest:" + strings.TrimSpace(payload.TenantID)
		decision := r.limiter.Allow(key, rateLimitIngestWrite, rateWindowDefault)
		r.applyRateHeaders(w, rateLimitIngestWrite, decision)
		if !decision.allowed {
			r.recordRateLimitHit("audit_ingest", rateMetricKey(key))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
	}
	event := domain.AuditEvent{
		TenantID:   payload.TenantID,
		ActorID:    payload.ActorID,
		Action:     payload.Action,
		EntityType: payload.EntityType,
		EntityID:   payload.EntityID,
	}
	if raw := strings.TrimSpace(payload.OccurredAt); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "occurred_at must be RFC 3339")
			return
		}
		event.OccurredAt = ts
	}
	stored, err := r.auditlog.Record(req.Context(), event)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusServiceUnavailable, "audit log unavailable")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded", "id": stored.ID})
}

func (r *Router) handleAuditList(w http.ResponseWriter, req *http.Request) {
	ctx, info, ok := r.ensureAuth(w, req)
	if !ok {
		return
	}
	if setter, ok := w.(contextSetter); ok {
		setter.SetContext(ctx)
	}
	if info.Role != domain.RoleAdmin {
		writeError(w, http.StatusForbidden, "administrator access required")
		return
	}
	if info.TenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant association required")
		return
	}
	query := req.URL.Query()
	limit := r.auditListLimit
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed < limit {
			limit = parsed
		}
	}
	rng := reportsvc.ResolveRange(
		parseEpochMS(query.Get("startDate")),
		parseEpochMS(query.Get("endDate")),
		query.Get("range"),
		time.Now(),
	)
	events, err := r.auditlog.List(ctx, repository.AuditQuery{
		TenantID: info.TenantID,
		Start:    rng.Start,
		End:      rng.End,
		Limit:    limit,
	})
	if err != nil {
		r.logger.Error("audit list failed", "tenant_id", info.TenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list audit events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (r *Router) handleMetricsWS(w http.ResponseWriter, req *http.Request) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	if info.TenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant association required")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("websocket upgrade failed", "error", err, "tenant_id", info.TenantID)
		return
	}
	client := ws.NewClient(conn, r.logger)
	hub := r.metrics.Hub()
	hub.Register(info.TenantID, client)
	go func() {
		defer func() {
			hub.Unregister(info.TenantID, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (r *Router) handleMetricsSSE(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	if info.TenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant association required")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-store")
	headers.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := ws.NewSSEClient(w, flusher, r.logger)
	hub := r.metrics.Hub()
	hub.Register(info.TenantID, client)
	defer func() {
		hub.Unregister(info.TenantID, client)
		client.Close()
	}()

	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}

func (r *Router) verifyIngestToken(w http.ResponseWriter, req *http.Request) bool {
	expected := r.ingestToken
	if expected == "" {
		r.logger.Error("ingest token not configured", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "ingest authentication misconfigured")
		return false
	}
	token := strings.TrimSpace(req.Header.Get("X-Ingest-Token"))
	if len(token) != len(expected) || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		r.logger.Warn("ingest token mismatch", "path", req.URL.Path)
		writeError(w, http.StatusUnauthorized, "invalid ingest token")
		return false
	}
	return true
}

func parseEpochMS(raw string) *int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &ms
}

func (r *Router) audit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.UserID)
			if info.TenantID != "" {
				fields = append(fields, "tenant_id", info.TenantID)
			}
		} else if req.Method == http.MethodPost && req.URL.Path == "/audit/events" {
			actor = "service"
		}
		fields = append(fields, "actor", actor)

		r.recordRequestMetrics(req.Method, req.URL.Path, status, duration)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (sr *statusRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := sr.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}
