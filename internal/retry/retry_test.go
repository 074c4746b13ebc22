package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastConfig(retries int) *Config {
	return &Config{MaxRetries: retries, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestDo(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")

	tests := []struct {
		name      string
		failures  int
		opts      *Options
		wantCalls int
		wantErr   error
	}{
		{name: "first try", failures: 0, wantCalls: 1},
		{name: "succeeds after retries", failures: 2, wantCalls: 3},
		{name: "exhausted", failures: 10, wantCalls: 4, wantErr: errBoom},
		{
			name:      "not retryable",
			failures:  10,
			opts:      &Options{ShouldRetry: func(error) bool { return false }},
			wantCalls: 1,
			wantErr:   errBoom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			err := Do(context.Background(), fastConfig(3), func() error {
				calls++
				if calls <= tt.failures {
					return errBoom
				}
				return nil
			}, tt.opts)

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDo_Permanent(t *testing.T) {
	t.Parallel()

	errStop := errors.New("stop")
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		return Permanent(errStop)
	}, nil)

	assert.Equal(t, 1, calls)
	assert.Same(t, errStop, err)
	assert.NoError(t, Permanent(nil))
}

func TestDo_OnRetry(t *testing.T) {
	t.Parallel()

	var attempts []int
	_ = Do(context.Background(), fastConfig(2), func() error {
		return errors.New("again")
	}, &Options{OnRetry: func(attempt int, _ error, _ time.Duration) {
		attempts = append(attempts, attempt)
	}})

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDo_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, nil, func() error {
		calls++
		return nil
	}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestCalculateBackoff(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 100*time.Millisecond, CalculateBackoff(0, 100*time.Millisecond, time.Second, 0))
	assert.Equal(t, 400*time.Millisecond, CalculateBackoff(2, 100*time.Millisecond, time.Second, 0))
	assert.Equal(t, time.Second, CalculateBackoff(10, 100*time.Millisecond, time.Second, 0))

	b := CalculateBackoff(1, 100*time.Millisecond, time.Second, 0.5)
	assert.GreaterOrEqual(t, b, 200*time.Millisecond)
	assert.LessOrEqual(t, b, 300*time.Millisecond)
}
