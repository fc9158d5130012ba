package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"

	"github.com/caseops/opsboard/internal/app/migrate"
	httpx "github.com/caseops/opsboard/internal/http"
	"github.com/caseops/opsboard/internal/repository/postgres"
	"github.com/caseops/opsboard/internal/service/audit"
	"github.com/caseops/opsboard/internal/service/auth"
	"github.com/caseops/opsboard/internal/service/metrics"
	"github.com/caseops/opsboard/internal/service/report"
	"github.com/caseops/opsboard/internal/ws"
	"github.com/caseops/opsboard/pkg/config"
	"github.com/caseops/opsboard/pkg/logger"
)

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)

	var sessions metrics.SessionCounter
	if addr := strings.TrimSpace(cfg.SessionRedisAddr); addr != "" {
		sessionClient := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.SessionRedisPass,
			DB:       cfg.SessionRedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := sessionClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warn("session redis unavailable, session counts default to zero", "error", err)
			_ = sessionClient.Close()
		} else {
			defer sessionClient.Close()
			sessions = metrics.NewRedisSessionCounter(sessionClient, cfg.SessionKeyPrefix)
		}
	}

	probes := metrics.NewProbes(repo, repo.Ping, sessions, cfg.IdentityHealthURL, nil)
	collector := metrics.NewCollector(probes, cfg.ProbeTimeout, log)
	coordinator := metrics.NewWriteCoordinator(repo, log, cfg.BucketLockTTL)
	metricsSvc := metrics.New(repo, collector, coordinator, ws.NewHub(), log)

	reportSvc := report.New(repo, log, cfg.AuditListLimit)
	auditSvc := audit.New(repo, log)
	authSvc := auth.New(repo, log, cfg.JWTSecret)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter.Close()
			limiter = redisLimiter
		}
	}
	defer limiter.Close()

	router := httpx.NewRouter(httpx.RouterOptions{
		Logger:         log,
		Auth:           authSvc,
		Metrics:        metricsSvc,
		Reports:        reportSvc,
		Audit:          auditSvc,
		Limiter:        limiter,
		IngestToken:    cfg.IngestToken,
		AuditListLimit: cfg.AuditListLimit,
		DBPing:         repo.Ping,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "environment", cfg.Environment)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
