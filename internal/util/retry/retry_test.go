package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	},
		WithMaxRetries(5),
		WithInitialDelay(time.Millisecond),
	)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return errors.New("still failing")
	},
		WithMaxRetries(2),
		WithInitialDelay(time.Millisecond),
	)
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "still failing")
}

func TestDo_FatalStopsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return Fatal(errors.New("bad credentials"))
	},
		WithMaxRetries(5),
		WithInitialDelay(time.Millisecond),
	)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Contains(t, err.Error(), "not retrying")
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, func() error {
		return errors.New("transient")
	},
		WithMaxRetries(3),
		WithInitialDelay(time.Second),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_DelayCappedAtMax(t *testing.T) {
	start := time.Now()
	_ = Do(context.Background(), func() error {
		return errors.New("transient")
	},
		WithMaxRetries(3),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(2*time.Millisecond),
		WithMultiplier(100),
	)
	// 3 waits, all capped at 2ms; generous upper bound for slow CI.
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(errors.New("plain")))
	assert.True(t, IsFatal(Fatal(errors.New("wrapped"))))

	// Survives further wrapping.
	wrapped := Fatal(errors.New("inner"))
	assert.True(t, IsFatal(errors.Join(errors.New("outer"), wrapped)))
}

func TestFatal_NilPassthrough(t *testing.T) {
	assert.NoError(t, Fatal(nil))
}

func TestFatal_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	assert.ErrorIs(t, Fatal(inner), inner)
}
