package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/caseops/opsboard/internal/repository"
)

// SessionCounter reports how many sessions are currently live for a tenant.
type SessionCounter interface {
	CountSessions(ctx context.Context, tenantID string) (int, error)
}

// RedisSessionCounter counts members of the per-tenant active-session set
// maintained by the session layer.
type RedisSessionCounter struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionCounter constructs a session counter over an existing client.
func NewRedisSessionCounter(client *redis.Client, prefix string) *RedisSessionCounter {
	return &RedisSessionCounter{client: client, prefix: prefix}
}

// CountSessions returns the cardinality of the tenant's session set.
func (c *RedisSessionCounter) CountSessions(ctx context.Context, tenantID string) (int, error) {
	count, err := c.client.SCard(ctx, c.prefix+tenantID).Result()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// NewProbes wires the standard probe set: count queries against the
// relational store, a storage ping, a session count from the session store,
// an HTTP reachability check against the identity provider, and a synthetic
// latency measurement derived from a storage round trip. Any dependency may
// be nil; its probe then reports failure and the collector applies defaults.
func NewProbes(stats repository.StatsRepository, storagePing func(context.Context) error, sessions SessionCounter, identityHealthURL string, httpClient *http.Client) Probes {
	probes := Probes{}
	if stats != nil {
		probes.ActiveUsers = stats.CountActiveUsers
		probes.OpenAlerts = stats.CountOpenAlerts
	}
	if sessions != nil {
		probes.ActiveSessions = sessions.CountSessions
	}
	if storagePing != nil {
		probes.StorageHealthy = storagePing
		probes.APILatencyMS = latencyProbe(storagePing)
	}
	if identityHealthURL != "" {
		if httpClient == nil {
			httpClient = http.DefaultClient
		}
		probes.AuthHealthy = identityProbe(identityHealthURL, httpClient)
	}
	return probes
}

func latencyProbe(ping func(context.Context) error) func(context.Context) (float64, error) {
	return func(ctx context.Context) (float64, error) {
		start := time.Now()
		if err := ping(ctx); err != nil {
			return 0, err
		}
		return float64(time.Since(start).Microseconds()) / 1000, nil
	}
}

func identityProbe(url string, client *http.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("identity provider unhealthy: status %d", resp.StatusCode)
		}
		return nil
	}
}
