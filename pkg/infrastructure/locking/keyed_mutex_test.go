package locking

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vsinha/prodplan/pkg/infrastructure/config"
)

func TestKeyedMutex_Exclusive(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(ctx, "lock:resource:a")
			if err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				prev := atomic.LoadInt32(&maxInside)
				if n <= prev || atomic.CompareAndSwapInt32(&maxInside, prev, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("Expected at most 1 holder, got %d", maxInside)
	}
	if m.Len() != 0 {
		t.Errorf("Expected idle keys to be dropped, got %d", m.Len())
	}
}

func TestKeyedMutex_IndependentKeysAndCancel(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	releaseA, err := m.Acquire(ctx, "a")
	if err != nil {
		t.Fatalf("Acquire a failed: %v", err)
	}
	releaseB, err := m.Acquire(ctx, "b")
	if err != nil {
		t.Fatalf("Expected independent key to be free: %v", err)
	}
	releaseB()

	cancelled, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if _, err := m.Acquire(cancelled, "a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded while a is held, got %v", err)
	}

	releaseA()
	releaseA()
	if m.Len() != 0 {
		t.Errorf("Expected no keys after release, got %d", m.Len())
	}
}

func TestRedisLocker_ExclusiveWhenAvailable(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb, err := NewRedisClient(ctx, config.RedisConfig{Addr: addr})
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer rdb.Close()

	locker := NewRedisLocker(rdb, config.LockConfig{TTL: time.Second, Retries: 2, RetryDelay: 10 * time.Millisecond}, nil)
	key := "lock:test:" + time.Now().Format(time.RFC3339Nano)

	release, err := locker.Acquire(ctx, key)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if _, err := locker.Acquire(ctx, key); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy for held key, got %v", err)
	}
	release()

	again, err := locker.Acquire(ctx, key)
	if err != nil {
		t.Fatalf("Expected key to be free after release: %v", err)
	}
	again()
}
