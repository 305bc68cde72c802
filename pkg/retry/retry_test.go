package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteSucceedsAfterTransientFailures(t *testing.T) {
	policy := NewExponentialBackoff(Config{
		InitialInterval: time.Millisecond,
		MaxRetries:      3,
	})

	calls := 0
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecuteExhaustsRetries(t *testing.T) {
	policy := NewExponentialBackoff(Config{
		InitialInterval: time.Millisecond,
		MaxRetries:      3,
	})

	lastErr := errors.New("still failing")
	calls := 0
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return lastErr
	})

	assert.ErrorIs(t, err, lastErr)
	assert.Equal(t, 4, calls, "initial attempt plus three retries")
}

func TestExecuteStopsOnNonRetryableError(t *testing.T) {
	fatal := errors.New("fatal")
	policy := NewExponentialBackoff(Config{
		InitialInterval: time.Millisecond,
		MaxRetries:      5,
		IsRetryable:     func(err error) bool { return !errors.Is(err, fatal) },
	})

	calls := 0
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return fatal
	})

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestExecuteHonorsContextCancellation(t *testing.T) {
	policy := NewExponentialBackoff(Config{
		InitialInterval: time.Second,
		MaxRetries:      5,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := policy.Execute(ctx, func(ctx context.Context) error {
		return errors.New("transient")
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNextDelayDoubles(t *testing.T) {
	policy := NewExponentialBackoff(Config{
		InitialInterval: time.Second,
		MaxRetries:      3,
	})

	assert.Equal(t, time.Second, policy.NextDelay(1))
	assert.Equal(t, 2*time.Second, policy.NextDelay(2))
	assert.Equal(t, 4*time.Second, policy.NextDelay(3))
}

func TestNextDelayCapsAtMaxInterval(t *testing.T) {
	policy := NewExponentialBackoff(Config{
		InitialInterval: time.Second,
		MaxInterval:     3 * time.Second,
		MaxRetries:      5,
	})

	assert.Equal(t, 3*time.Second, policy.NextDelay(4))
}
