package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/caseops/opsboard/internal/domain"
)

type bucketStoreStub struct {
	mu      sync.Mutex
	calls   int
	buckets []domain.TimeBucket
	block   chan struct{}
	err     error
}

func (s *bucketStoreStub) UpsertBucket(_ context.Context, bucket *domain.TimeBucket) error {
	s.mu.Lock()
	s.calls++
	block := s.block
	s.mu.Unlock()
	if block != nil {
		<-block
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.buckets = append(s.buckets, *bucket)
	s.mu.Unlock()
	return nil
}

func (s *bucketStoreStub) ListRecentBuckets(context.Context, string, int) ([]domain.TimeBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.TimeBucket, len(s.buckets))
	copy(out, s.buckets)
	return out, nil
}

func (s *bucketStoreStub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestPersistSkipsConcurrentWriteForSameMinute(t *testing.T) {
	store := &bucketStoreStub{block: make(chan struct{})}
	c := NewWriteCoordinator(store, nil, time.Minute)
	base := time.Date(2026, time.March, 9, 10, 30, 12, 0, time.UTC)
	c.now = func() time.Time { return base }

	first := domain.MetricsSnapshot{Users: 1}
	second := domain.MetricsSnapshot{Users: 2}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Persist(context.Background(), "tenant-1", first)
	}()
	waitFor(t, func() bool { return store.callCount() == 1 })

	// The lock for this minute is held, so this write is skipped entirely.
	c.Persist(context.Background(), "tenant-1", second)
	if store.callCount() != 1 {
		t.Fatalf("expected skip while write in flight, got %d upserts", store.callCount())
	}

	close(store.block)
	<-done

	if len(store.buckets) != 1 {
		t.Fatalf("expected exactly one persisted bucket, got %d", len(store.buckets))
	}
	persisted := store.buckets[0]
	if persisted.Users != first.Users && persisted.Users != second.Users {
		t.Fatalf("persisted value %d matches neither input", persisted.Users)
	}
	if !persisted.BucketStart.Equal(base.Truncate(time.Minute)) {
		t.Fatalf("unexpected bucket start %v", persisted.BucketStart)
	}

	key := bucketKey{tenantID: "tenant-1", bucketStart: base.Truncate(time.Minute).UnixMilli()}
	if c.locked(key) {
		t.Fatal("lock still held after write completed")
	}
}

func TestPersistReleasesLockAfterTTL(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	store := &bucketStoreStub{block: block}
	c := NewWriteCoordinator(store, nil, 20*time.Millisecond)
	base := time.Date(2026, time.March, 9, 10, 30, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	go c.Persist(context.Background(), "tenant-1", domain.MetricsSnapshot{Users: 1})
	waitFor(t, func() bool { return store.callCount() == 1 })

	key := bucketKey{tenantID: "tenant-1", bucketStart: base.Truncate(time.Minute).UnixMilli()}
	waitFor(t, func() bool { return !c.locked(key) })

	// With the stalled writer's lock expired, a new write may proceed.
	go c.Persist(context.Background(), "tenant-1", domain.MetricsSnapshot{Users: 2})
	waitFor(t, func() bool { return store.callCount() == 2 })
}

func TestPersistSwallowsUpsertErrors(t *testing.T) {
	store := &bucketStoreStub{err: errors.New("connection refused")}
	c := NewWriteCoordinator(store, nil, time.Minute)
	base := time.Date(2026, time.March, 9, 10, 30, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	c.Persist(context.Background(), "tenant-1", domain.MetricsSnapshot{Users: 1})

	key := bucketKey{tenantID: "tenant-1", bucketStart: base.Truncate(time.Minute).UnixMilli()}
	if c.locked(key) {
		t.Fatal("lock leaked after failed upsert")
	}
	// A later write for the same minute can retry.
	c.Persist(context.Background(), "tenant-1", domain.MetricsSnapshot{Users: 2})
	if store.callCount() != 2 {
		t.Fatalf("expected retry after failure, got %d upserts", store.callCount())
	}
}

func TestPersistDistinctMinutesDoNotContend(t *testing.T) {
	store := &bucketStoreStub{}
	c := NewWriteCoordinator(store, nil, time.Minute)
	base := time.Date(2026, time.March, 9, 10, 30, 0, 0, time.UTC)

	c.now = func() time.Time { return base }
	c.Persist(context.Background(), "tenant-1", domain.MetricsSnapshot{Users: 1})
	c.now = func() time.Time { return base.Add(time.Minute) }
	c.Persist(context.Background(), "tenant-1", domain.MetricsSnapshot{Users: 2})

	if len(store.buckets) != 2 {
		t.Fatalf("expected two buckets for two minutes, got %d", len(store.buckets))
	}
}
