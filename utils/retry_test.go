package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Logger: NewNopLogger()}

	calls := 0
	err := r.Do(context.Background(), "flaky", func(attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("boom")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond}

	err := r.Do(context.Background(), "always-fails", func(int) error { return errors.New("boom") })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "always-fails failed after 2 attempts")
}

func TestRetryStopsOnCancel(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := r.Do(ctx, "cancelled", func(int) error {
		calls++
		cancel()
		return errors.New("boom")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunCountersAndFailures(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	run := NewRunWithClock(nil, func() time.Time { return fixed })

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, fixed, run.StartedAt)

	run.Counters.Fetched.Add(2)
	run.Counters.Fail("https://b.example/2", "timeout")
	run.Counters.Fail("https://a.example/1", "http-error: 500")

	assert.EqualValues(t, 2, run.Counters.Fetched.Load())
	failures := run.Counters.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, "https://a.example/1", failures[0].URL)
}
