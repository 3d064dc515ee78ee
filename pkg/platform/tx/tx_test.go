package tx

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "eventreg/pkg/domain-errors"
	"eventreg/pkg/platform/sentinel"
)

func newTestRunner(attempts int, outcomes *[]string) *Runner {
	return NewRunner(
		WithMaxAttempts(attempts),
		WithBackoff(0, 0),
		WithObserver(func(o string) { *outcomes = append(*outcomes, o) }),
	)
}

func TestRunRetriesConflicts(t *testing.T) {
	var outcomes []string
	runner := newTestRunner(5, &outcomes)

	calls := 0
	err := runner.Run(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("commit: %w", sentinel.ErrConflict)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{OutcomeConflict, OutcomeConflict, OutcomeCommitted}, outcomes)
}

func TestRunStopsOnNonRetryableError(t *testing.T) {
	var outcomes []string
	runner := newTestRunner(5, &outcomes)
	boom := errors.New("disk full")

	calls := 0
	err := runner.Run(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{OutcomeFailed}, outcomes)
}

func TestRunExhaustsAttempts(t *testing.T) {
	var outcomes []string
	runner := newTestRunner(3, &outcomes)

	calls := 0
	err := runner.Run(context.Background(), func(ctx context.Context) error {
		calls++
		return sentinel.ErrUnavailable
	})

	require.ErrorIs(t, err, ErrRetriesExhausted)
	require.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.Equal(t, 3, calls)
	assert.Len(t, outcomes, 3)
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := NewRunner().Run(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.False(t, called)
	assert.True(t, dErrors.Is(err, dErrors.CodeTimeout))
}

func TestRunAppliesAttemptTimeout(t *testing.T) {
	runner := NewRunner(WithTimeout(time.Minute))

	err := runner.Run(context.Background(), func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
		return nil
	})
	require.NoError(t, err)
}

func TestBackoffStaysWithinCap(t *testing.T) {
	runner := NewRunner(WithBackoff(10*time.Millisecond, 40*time.Millisecond))
	for attempt := 1; attempt <= 10; attempt++ {
		d := runner.backoff(attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 40*time.Millisecond)
	}
}
