package repository

import (
	"context"
	"time"

	"github.com/caseops/opsboard/internal/domain"
)

// UserRepository reads staff accounts.
type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// BucketRepository persists per-minute metric buckets. UpsertBucket must be
// idempotent by (tenant_id, bucket_start): concurrent or duplicate writes to
// the same key overwrite rather than accumulate.
type BucketRepository interface {
	UpsertBucket(ctx context.Context, bucket *domain.TimeBucket) error
	ListRecentBuckets(ctx context.Context, tenantID string, limit int) ([]domain.TimeBucket, error)
}

// AuditQuery scopes an audit log read.
type AuditQuery struct {
	TenantID string
	Start    *time.Time
	End      *time.Time
	Limit    int
}

// AuditRepository appends to and reads the tenant audit log.
type AuditRepository interface {
	InsertAuditEvent(ctx context.Context, event *domain.AuditEvent) error
	ListAuditEvents(ctx context.Context, query AuditQuery) ([]domain.AuditEvent, error)
}

// StatsRepository serves the count probes behind snapshot collection.
type StatsRepository interface {
	CountActiveUsers(ctx context.Context, tenantID string) (int, error)
	CountOpenAlerts(ctx context.Context, tenantID string) (int, error)
}
