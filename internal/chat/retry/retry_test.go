// internal/chat/retry/retry_test.go
package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"answer-gateway/internal/chat/attempt"
	"answer-gateway/internal/chat/clock"
	apperrors "answer-gateway/internal/common/errors"
	"answer-gateway/internal/completion"
)

func transient() attempt.Outcome {
	return attempt.FromError(apperrors.NewServiceUnavailableError(errors.New("503")))
}

func TestPolicy_Do_RetriesTransientWithExponentialDelays(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	p := New(3, 600*time.Millisecond, clk)

	calls := 0
	out := p.Do(context.Background(), func(ctx context.Context) attempt.Outcome {
		calls++
		return transient()
	})

	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, attempt.KindTransientFailure, out.Kind)
	assert.Equal(t, []time.Duration{600 * time.Millisecond, 1200 * time.Millisecond}, clk.Sleeps())
}

func TestPolicy_Do_UnsupportedIsNotRetried(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	p := New(3, 600*time.Millisecond, clk)

	calls := 0
	out := p.Do(context.Background(), func(ctx context.Context) attempt.Outcome {
		calls++
		return attempt.FromError(apperrors.NewUnsupportedFeatureError("unknown_parameter"))
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, attempt.KindUnsupportedFeature, out.Kind)
	assert.Empty(t, clk.Sleeps())
}

func TestPolicy_Do_FatalIsNotRetried(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	p := New(3, time.Second, clk)

	calls := 0
	out := p.Do(context.Background(), func(ctx context.Context) attempt.Outcome {
		calls++
		return attempt.FromError(apperrors.NewUnauthorizedError("401"))
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, attempt.KindFatalFailure, out.Kind)
	assert.Equal(t, apperrors.ErrCodeUnauthorized, out.Code())
}

func TestPolicy_Do_SucceedsAfterTransient(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	p := New(3, 100*time.Millisecond, clk)

	calls := 0
	out := p.Do(context.Background(), func(ctx context.Context) attempt.Outcome {
		calls++
		if calls == 1 {
			return transient()
		}
		return attempt.Success(completion.RawResponse{"output_text": "ok"})
	})

	assert.True(t, out.Succeeded())
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, []time.Duration{100 * time.Millisecond}, clk.Sleeps())
}

func TestPolicy_Do_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New(5, time.Hour, clock.Real())

	calls := 0
	out := p.Do(ctx, func(ctx context.Context) attempt.Outcome {
		calls++
		cancel()
		return transient()
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, attempt.KindTransientFailure, out.Kind)
}

func TestPolicy_Do_OnRetryHook(t *testing.T) {
	p := New(2, 10*time.Millisecond, clock.NewFake(time.Unix(0, 0)))
	var seen []int
	p.OnRetry = func(n int, delay time.Duration, last attempt.Outcome) {
		seen = append(seen, n)
		assert.Equal(t, 10*time.Millisecond, delay)
	}

	p.Do(context.Background(), func(ctx context.Context) attempt.Outcome { return transient() })
	assert.Equal(t, []int{1}, seen)
}

func TestPolicy_WithMaxAttempts(t *testing.T) {
	p := New(3, time.Second, nil)
	assert.Equal(t, 1, p.WithMaxAttempts(1).MaxAttempts)
	assert.Equal(t, 3, p.WithMaxAttempts(0).MaxAttempts)
	assert.Equal(t, 3, p.MaxAttempts)
}

func TestPolicy_Do_ScheduleProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("transient failures wait base*2^i and stop at max attempts", prop.ForAll(
		func(maxAttempts int, baseMs int) bool {
			clk := clock.NewFake(time.Unix(0, 0))
			base := time.Duration(baseMs) * time.Millisecond
			p := New(maxAttempts, base, clk)

			calls := 0
			out := p.Do(context.Background(), func(ctx context.Context) attempt.Outcome {
				calls++
				return transient()
			})

			if calls != maxAttempts || out.Attempts != maxAttempts {
				return false
			}
			sleeps := clk.Sleeps()
			if len(sleeps) != maxAttempts-1 {
				return false
			}
			for i, d := range sleeps {
				if d != base*time.Duration(1<<uint(i)) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 6),
		gen.IntRange(1, 5000),
	))

	properties.TestingRun(t)
}
