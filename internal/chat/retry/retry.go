// internal/chat/retry/retry.go
package retry

import (
	"context"
	"time"

	"answer-gateway/internal/chat/attempt"
	"answer-gateway/internal/chat/clock"
)

// Policy retries only transient outcomes. The delay before retry i (counting
// from zero) is BaseDelay * 2^i, without jitter.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Clock       clock.Clock

	// OnRetry, when set, is called before each backoff wait.
	OnRetry func(attemptNumber int, delay time.Duration, last attempt.Outcome)
}

func New(maxAttempts int, baseDelay time.Duration, clk clock.Clock) *Policy {
	if clk == nil {
		clk = clock.Real()
	}
	return &Policy{MaxAttempts: maxAttempts, BaseDelay: baseDelay, Clock: clk}
}

// WithMaxAttempts returns a copy of p using n attempts; n <= 0 keeps p's value.
func (p *Policy) WithMaxAttempts(n int) *Policy {
	cp := *p
	if n > 0 {
		cp.MaxAttempts = n
	}
	return &cp
}

// Delay returns the wait before retry i, counting from zero.
func (p *Policy) Delay(i int) time.Duration {
	return p.BaseDelay << uint(i)
}

// Do runs fn until it returns a non-transient outcome or the attempt budget
// is spent. Exhaustion returns the last transient outcome. Cancellation of
// ctx during a backoff also returns the last outcome.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) attempt.Outcome) attempt.Outcome {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.Real()
	}

	var out attempt.Outcome
	for n := 1; ; n++ {
		out = fn(ctx)
		out.Attempts = n

		if out.Kind != attempt.KindTransientFailure || n >= maxAttempts {
			return out
		}

		delay := p.Delay(n - 1)
		if p.OnRetry != nil {
			p.OnRetry(n, delay, out)
		}
		if err := clk.Sleep(ctx, delay); err != nil {
			return out
		}
	}
}
