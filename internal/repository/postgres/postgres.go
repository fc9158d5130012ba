package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caseops/opsboard/internal/domain"
	"github.com/caseops/opsboard/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository   = (*Repository)(nil)
	_ repository.BucketRepository = (*Repository)(nil)
	_ repository.AuditRepository  = (*Repository)(nil)
	_ repository.StatsRepository  = (*Repository)(nil)
)

// GetUserByID retrieves a staff account by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, tenant_id, email, name, role, created_at FROM users WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var u domain.User
	if err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.Name, &u.Role, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// UpsertBucket writes a per-minute metric bucket. Later writes to the same
// (tenant_id, bucket_start) key replace earlier ones.
func (r *Repository) UpsertBucket(ctx context.Context, bucket *domain.TimeBucket) error {
	const query = `INSERT INTO time_buckets (
		tenant_id,
		bucket_start,
		users,
		sessions,
		uptime_pct,
		alert_count,
		storage_ok,
		auth_ok,
		api_latency_ms,
		updated_at
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,NOW()
	) ON CONFLICT (tenant_id, bucket_start)
	DO UPDATE SET
		users = EXCLUDED.users,
		sessions = EXCLUDED.sessions,
		uptime_pct = EXCLUDED.uptime_pct,
		alert_count = EXCLUDED.alert_count,
		storage_ok = EXCLUDED.storage_ok,
		auth_ok = EXCLUDED.auth_ok,
		api_latency_ms = EXCLUDED.api_latency_ms,
		updated_at = NOW()`
	_, err := r.pool.Exec(ctx, query,
		bucket.TenantID,
		bucket.BucketStart,
		bucket.Users,
		bucket.Sessions,
		bucket.UptimePct,
		bucket.AlertCount,
		bucket.StorageOK,
		bucket.AuthOK,
		bucket.APILatencyMS,
	)
	return err
}

// ListRecentBuckets returns up to limit buckets for a tenant, newest first.
func (r *Repository) ListRecentBuckets(ctx context.Context, tenantID string, limit int) ([]domain.TimeBucket, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `SELECT
		tenant_id,
		bucket_start,
		users,
		sessions,
		uptime_pct,
		alert_count,
		storage_ok,
		auth_ok,
		api_latency_ms,
		updated_at
	FROM time_buckets
	WHERE tenant_id = $1
	ORDER BY bucket_start DESC
	LIMIT $2`
	rows, err := r.pool.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	buckets := make([]domain.TimeBucket, 0, limit)
	for rows.Next() {
		var b domain.TimeBucket
		if err := rows.Scan(
			&b.TenantID,
			&b.BucketStart,
			&b.Users,
			&b.Sessions,
			&b.UptimePct,
			&b.AlertCount,
			&b.StorageOK,
			&b.AuthOK,
			&b.APILatencyMS,
			&b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// InsertAuditEvent appends one record to the tenant audit log.
func (r *Repository) InsertAuditEvent(ctx context.Context, event *domain.AuditEvent) error {
	const query = `INSERT INTO audit_events (
		id, tenant_id, actor_id, action, entity_type, entity_id, occurred_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.TenantID,
		emptyToNil(event.ActorID),
		event.Action,
		emptyToNil(event.EntityType),
		emptyToNil(event.EntityID),
		event.OccurredAt,
	)
	return err
}

// ListAuditEvents returns audit records in [start, end) for a tenant, oldest
// first, with actor metadata joined in.
func (r *Repository) ListAuditEvents(ctx context.Context, query repository.AuditQuery) ([]domain.AuditEvent, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 1000
	}
	const sql = `SELECT
		e.id,
		e.tenant_id,
		COALESCE(e.actor_id, ''),
		COALESCE(u.email, ''),
		COALESCE(u.name, ''),
		COALESCE(u.role, ''),
		e.action,
		COALESCE(e.entity_type, ''),
		COALESCE(e.entity_id, ''),
		e.occurred_at
	FROM audit_events e
	LEFT JOIN users u ON u.id = e.actor_id
	WHERE e.tenant_id = $1
		AND ($2::timestamptz IS NULL OR e.occurred_at >= $2)
		AND ($3::timestamptz IS NULL OR e.occurred_at < $3)
	ORDER BY e.occurred_at ASC
	LIMIT $4`
	rows, err := r.pool.Query(ctx, sql, query.TenantID, query.Start, query.End, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]domain.AuditEvent, 0)
	for rows.Next() {
		var e domain.AuditEvent
		if err := rows.Scan(
			&e.ID,
			&e.TenantID,
			&e.ActorID,
			&e.ActorEmail,
			&e.ActorName,
			&e.ActorRole,
			&e.Action,
			&e.EntityType,
			&e.EntityID,
			&e.OccurredAt,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountActiveUsers counts enabled staff accounts for a tenant.
func (r *Repository) CountActiveUsers(ctx context.Context, tenantID string) (int, error) {
	const query = `SELECT COUNT(1) FROM users WHERE tenant_id = $1 AND active`
	row := r.pool.QueryRow(ctx, query, tenantID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CountOpenAlerts counts unresolved alerts for a tenant.
func (r *Repository) CountOpenAlerts(ctx context.Context, tenantID string) (int, error) {
	const query = `SELECT COUNT(1) FROM alerts WHERE tenant_id = $1 AND resolved_at IS NULL`
	row := r.pool.QueryRow(ctx, query, tenantID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Ping verifies database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func emptyToNil(value string) any {
	if value == "" {
		return nil
	}
	return value
}
