package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	l, err := NewRedis("redis://"+mr.Addr(), time.Minute, 0)
	if err != nil {
		t.Fatalf("NewRedis failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l, mr
}

func TestRedisExclusive(t *testing.T) {
	l, _ := setupRedis(t)
	ctx := context.Background()

	lease, err := l.Acquire(ctx, "report:1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Acquire(ctx, "report:1"); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if _, err := l.Acquire(ctx, "report:2"); err != nil {
		t.Errorf("expected other report to be free, got %v", err)
	}
	if err := lease.Release(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Acquire(ctx, "report:1"); err != nil {
		t.Errorf("expected lock free after release, got %v", err)
	}
}

func TestRedisLeaseExpires(t *testing.T) {
	l, mr := setupRedis(t)
	ctx := context.Background()

	old, err := l.Acquire(ctx, "report:1")
	if err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Minute)

	fresh, err := l.Acquire(ctx, "report:1")
	if err != nil {
		t.Fatalf("expected expired lease to be reclaimable, got %v", err)
	}
	// The stale holder must not release the new lease.
	if err := old.Release(ctx); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("reportedit:lock:report:1") {
		t.Error("stale release removed the new lease")
	}
	fresh.Release(ctx)
	if mr.Exists("reportedit:lock:report:1") {
		t.Error("expected key deleted on release")
	}
}

func TestRedisWaitsForRelease(t *testing.T) {
	mr := miniredis.RunT(t)
	l, err := NewRedis("redis://"+mr.Addr(), time.Minute, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	ctx := context.Background()

	lease, _ := l.Acquire(ctx, "r")
	go func() {
		time.Sleep(100 * time.Millisecond)
		lease.Release(ctx)
	}()
	if _, err := l.Acquire(ctx, "r"); err != nil {
		t.Errorf("expected acquire after release, got %v", err)
	}
}

func TestLocal(t *testing.T) {
	l := NewLocal(time.Minute, 0)
	ctx := context.Background()

	lease, err := l.Acquire(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Acquire(ctx, "a"); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	lease.Release(ctx)
	if _, err := l.Acquire(ctx, "a"); err != nil {
		t.Errorf("expected free after release, got %v", err)
	}
}

func TestLocalExpiry(t *testing.T) {
	l := NewLocal(time.Second, 0)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }
	ctx := context.Background()

	old, _ := l.Acquire(ctx, "a")
	clock = clock.Add(2 * time.Second)
	if _, err := l.Acquire(ctx, "a"); err != nil {
		t.Fatalf("expected expired lease reclaimed, got %v", err)
	}
	old.Release(ctx)
	if _, err := l.Acquire(ctx, "a"); !errors.Is(err, ErrLocked) {
		t.Errorf("stale release freed the new lease: %v", err)
	}
}

func TestAcquireHonorsContext(t *testing.T) {
	l := NewLocal(time.Minute, time.Minute)
	l.Acquire(context.Background(), "a")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
