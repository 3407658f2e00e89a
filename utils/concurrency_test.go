package utils

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLSetNoDuplicates(t *testing.T) {
	s := NewURLSet()

	assert.True(t, s.Add("https://example.com/1"), "first Add should return true")
	assert.False(t, s.Add("https://example.com/1"), "second Add of same URL should return false")
	assert.Equal(t, 1, s.Size())
	assert.True(t, s.Contains("https://example.com/1"))
}

func TestURLSetConcurrency(t *testing.T) {
	s := NewURLSet()
	var added int64

	pool := NewWorkerPool(10, 0)
	for i := 0; i < 100; i++ {
		url := "https://example.com/same"
		require.NoError(t, pool.Submit(context.Background(), func(context.Context) {
			if s.Add(url) {
				atomic.AddInt64(&added, 1)
			}
		}))
	}
	pool.Wait()

	assert.EqualValues(t, 1, added)
}

func TestWorkerPoolRateLimit(t *testing.T) {
	rateLimitMs := 100
	pool := NewWorkerPool(1, rateLimitMs)

	var mu sync.Mutex
	var timestamps []time.Time

	for i := 0; i < 3; i++ {
		require.NoError(t, pool.Submit(context.Background(), func(context.Context) {
			mu.Lock()
			timestamps = append(timestamps, time.Now())
			mu.Unlock()
		}))
	}
	pool.Wait()

	require.Len(t, timestamps, 3)
	// Allow a little scheduler slack below the nominal interval.
	min := time.Duration(rateLimitMs)*time.Millisecond - 10*time.Millisecond
	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i].Sub(timestamps[i-1])
		assert.GreaterOrEqual(t, gap, min, "gap between job %d and %d", i-1, i)
	}
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	pool := NewWorkerPool(3, 0)
	var inflight, peak int64

	for i := 0; i < 20; i++ {
		require.NoError(t, pool.Submit(context.Background(), func(context.Context) {
			n := atomic.AddInt64(&inflight, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&inflight, -1)
		}))
	}
	pool.Wait()

	assert.LessOrEqual(t, peak, int64(3))
	assert.Equal(t, 3, pool.MaxWorkers())
}

func TestWorkerPoolSubmitCancelled(t *testing.T) {
	pool := NewWorkerPool(1, 0)
	release := make(chan struct{})
	require.NoError(t, pool.Submit(context.Background(), func(context.Context) { <-release }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pool.Submit(ctx, func(context.Context) { t.Error("job must not run") })
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	pool.Wait()
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	var inside, overlap int64
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("https://example.com/a")
			if atomic.AddInt64(&inside, 1) > 1 {
				atomic.AddInt64(&overlap, 1)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Zero(t, overlap)
	assert.Zero(t, km.Len(), "entries are released once unused")
}

func TestKeyedMutexDifferentKeysDoNotBlock(t *testing.T) {
	km := NewKeyedMutex()
	unlockA := km.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := km.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}
