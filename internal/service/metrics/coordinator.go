package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/caseops/opsboard/internal/domain"
	"github.com/caseops/opsboard/internal/repository"
)

const defaultLockTTL = 5 * time.Second

var bucketWrites = newBucketWritesCounter()

func newBucketWritesCounter() *prometheus.CounterVec {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opsboard",
		Subsystem: "metrics",
		Name:      "bucket_writes_total",
		Help:      "Outcomes of per-minute bucket persist attempts",
	}, []string{"result"})
	if err := prometheus.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return counter
}

type bucketKey struct {
	tenantID    string
	bucketStart int64
}

// WriteCoordinator reduces redundant bucket writes: within one process, at
// most one persist per (tenant, minute) key is in flight at a time.
// Concurrent callers for the same key skip. The lock is a cost optimisation,
// not a correctness mechanism; the upsert stays idempotent by key and
// last-writer-wins across processes.
type WriteCoordinator struct {
	store   repository.BucketRepository
	logger  *slog.Logger
	lockTTL time.Duration
	now     func() time.Time

	mu       sync.Mutex
	inflight map[bucketKey]struct{}
}

// NewWriteCoordinator constructs a WriteCoordinator with the given lock TTL.
func NewWriteCoordinator(store repository.BucketRepository, logger *slog.Logger, lockTTL time.Duration) *WriteCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	return &WriteCoordinator{
		store:    store,
		logger:   logger,
		lockTTL:  lockTTL,
		now:      time.Now,
		inflight: make(map[bucketKey]struct{}),
	}
}

// Persist upserts the snapshot into the current minute's bucket. A held lock
// means another request is already writing this minute, so the call returns
// without touching the store. Persistence failures are logged and swallowed:
// they must never fail the read-side request that triggered the write.
func (c *WriteCoordinator) Persist(ctx context.Context, tenantID string, snapshot domain.MetricsSnapshot) {
	start := c.now().Truncate(time.Minute)
	key := bucketKey{tenantID: tenantID, bucketStart: start.UnixMilli()}
	if !c.tryAcquire(key) {
		bucketWrites.WithLabelValues("skipped").Inc()
		return
	}
	// Safety net: a crashed or stalled writer must not pin the key forever.
	timer := time.AfterFunc(c.lockTTL, func() { c.release(key) })
	defer func() {
		timer.Stop()
		c.release(key)
	}()

	bucket := &domain.TimeBucket{
		TenantID:     tenantID,
		BucketStart:  start,
		Users:        snapshot.Users,
		Sessions:     snapshot.Sessions,
		UptimePct:    snapshot.UptimePct,
		AlertCount:   snapshot.AlertCount,
		StorageOK:    snapshot.StorageOK,
		AuthOK:       snapshot.AuthOK,
		APILatencyMS: snapshot.APILatencyMS,
	}
	if err := c.store.UpsertBucket(ctx, bucket); err != nil {
		bucketWrites.WithLabelValues("failed").Inc()
		c.logger.Warn("bucket upsert failed", "tenant_id", tenantID, "bucket_start", start, "error", err)
		return
	}
	bucketWrites.WithLabelValues("written").Inc()
}

func (c *WriteCoordinator) tryAcquire(key bucketKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, held := c.inflight[key]; held {
		return false
	}
	c.inflight[key] = struct{}{}
	return true
}

func (c *WriteCoordinator) release(key bucketKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, key)
}

func (c *WriteCoordinator) locked(key bucketKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, held := c.inflight[key]
	return held
}
