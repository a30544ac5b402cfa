// internal/chat/strategy/cascade.go
package strategy

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"answer-gateway/internal/chat/attempt"
	"answer-gateway/internal/chat/citations"
	"answer-gateway/internal/chat/clock"
	"answer-gateway/internal/chat/normalizer"
	"answer-gateway/internal/chat/retry"
	apperrors "answer-gateway/internal/common/errors"
	"answer-gateway/internal/common/logger"
	"answer-gateway/internal/common/metrics"
	"answer-gateway/internal/models"
)

const (
	TracerName = "answer-gateway/strategy"

	NoticeGroundingUnavailable = "Document search is currently unavailable. This answer was generated without consulting the document library."
	noticeModelFallback        = "The primary model is currently unavailable. This answer was generated by %s."
	noticeDegraded             = "The preferred answer method is currently unavailable. This answer was produced by a fallback method."

	diagnosticKey = "attempts"
)

type Options struct {
	Retry         *retry.Policy
	Lookup        citations.Lookup
	LookupTimeout time.Duration
	Tracer        trace.Tracer
	Clock         clock.Clock
	Logger        logger.Logger
	// Debug attaches the attempt trail to answers and errors.
	Debug bool
}

// Cascade tries strategies in order until one succeeds. The strategy list is
// fixed at construction and read-only afterwards, so one Cascade serves all
// requests.
type Cascade struct {
	strategies    []Strategy
	retry         *retry.Policy
	lookup        citations.Lookup
	lookupTimeout time.Duration
	tracer        trace.Tracer
	clock         clock.Clock
	logger        logger.Logger
	debug         bool
}

func NewCascade(strategies []Strategy, opts Options) *Cascade {
	c := &Cascade{
		strategies:    strategies,
		retry:         opts.Retry,
		lookup:        opts.Lookup,
		lookupTimeout: opts.LookupTimeout,
		tracer:        opts.Tracer,
		clock:         opts.Clock,
		logger:        opts.Logger,
		debug:         opts.Debug,
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if c.retry == nil {
		c.retry = retry.New(1, 0, c.clock)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(TracerName)
	}
	if c.logger == nil {
		c.logger = logger.NewNoOpLogger()
	}
	return c
}

// Strategies returns the configured order.
func (c *Cascade) Strategies() []Strategy {
	return c.strategies
}

// Execute returns the answer of the first strategy that succeeds. Expected
// failures never escape individually; when every strategy fails the result is
// a CASCADE_EXHAUSTED error carrying the last failure.
func (c *Cascade) Execute(ctx context.Context, q models.Query) (*models.Answer, error) {
	log := logger.FromContext(ctx, c.logger)
	trail := make([]models.AttemptRecord, 0, len(c.strategies))

	var last *apperrors.StandardError
	for i, s := range c.strategies {
		out, record := c.run(ctx, s, q, log)
		trail = append(trail, record)

		if out.Succeeded() {
			answer := c.answer(ctx, i, out, log)
			if c.debug {
				answer.Diagnostic = trail
			}
			if i > 0 {
				metrics.CascadeFallbacks.Inc()
			}
			log.Info("answer produced", map[string]interface{}{
				"strategy":      s.Name(),
				"groundingUsed": answer.GroundingUsed,
				"model":         answer.ModelUsed,
				"citations":     len(answer.Citations),
			})
			return answer, nil
		}

		last = out.Err
		log.Warn("strategy failed", map[string]interface{}{
			"strategy":  s.Name(),
			"outcome":   out.Kind.String(),
			"attempts":  out.Attempts,
			"errorCode": string(out.Code()),
			"details":   out.Err.Details,
		})

		if ctx.Err() != nil {
			break
		}
	}

	metrics.CascadeExhausted.Inc()
	exhausted := apperrors.NewCascadeExhaustedError(last, len(trail))
	exhausted.WithMetadata(diagnosticKey, trail)
	return nil, exhausted
}

// Diagnostic returns the attempt trail carried by an exhausted cascade error.
func Diagnostic(err error) []models.AttemptRecord {
	stdErr := apperrors.AsStandardError(err)
	if stdErr == nil {
		return nil
	}
	trail, _ := stdErr.Metadata[diagnosticKey].([]models.AttemptRecord)
	return trail
}

func (c *Cascade) run(ctx context.Context, s Strategy, q models.Query, log logger.Logger) (Outcome, models.AttemptRecord) {
	ctx, span := c.tracer.Start(ctx, "strategy.attempt", trace.WithAttributes(
		attribute.String("strategy.name", s.Name()),
		attribute.String("strategy.kind", string(s.Kind())),
		attribute.Bool("strategy.grounded", s.Grounded()),
		attribute.String("strategy.model", s.Model()),
	))
	defer span.End()

	policy := c.retry.WithMaxAttempts(s.MaxAttempts())
	policy.OnRetry = func(n int, delay time.Duration, prev attempt.Outcome) {
		metrics.RetryAttempts.WithLabelValues(s.Name()).Inc()
		log.Debug("retrying transient failure", map[string]interface{}{
			"strategy":  s.Name(),
			"attempt":   n,
			"delayMs":   delay.Milliseconds(),
			"errorCode": string(prev.Code()),
		})
	}

	start := c.clock.Now()
	out := policy.Do(ctx, func(ctx context.Context) attempt.Outcome {
		return s.Attempt(ctx, q)
	})
	if !out.Succeeded() && out.Err == nil {
		out.Err = apperrors.NewInternalError(fmt.Errorf("strategy %s failed without a reason", s.Name()))
	}
	elapsed := c.clock.Now().Sub(start)

	metrics.StrategyAttempts.WithLabelValues(s.Name(), out.Kind.String()).Inc()
	metrics.StrategyDuration.WithLabelValues(s.Name()).Observe(elapsed.Seconds())

	span.SetAttributes(
		attribute.String("strategy.outcome", out.Kind.String()),
		attribute.Int("strategy.attempts", out.Attempts),
	)

	record := models.AttemptRecord{
		Strategy:   s.Name(),
		Outcome:    out.Kind.String(),
		Attempts:   out.Attempts,
		DurationMs: elapsed.Milliseconds(),
	}
	if out.Err != nil {
		record.ErrorCode = string(out.Err.Code)
		record.Detail = out.Err.Details
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, string(out.Err.Code))
	}
	return out, record
}

func (c *Cascade) answer(ctx context.Context, winner int, out Outcome, log logger.Logger) *models.Answer {
	s := c.strategies[winner]
	n := normalizer.Normalize(out.Raw)

	resolver := citations.NewResolver(c.lookup, c.lookupTimeout, log)
	resolver.ResolveAll(ctx, n.Citations)

	return &models.Answer{
		Text:          n.Text,
		Citations:     n.Citations,
		GroundingUsed: s.Grounded(),
		ModelUsed:     s.Model(),
		Notice:        c.notice(winner),
	}
}

// notice explains a degraded answer. It is empty when the first strategy won.
func (c *Cascade) notice(winner int) string {
	if winner == 0 {
		return ""
	}
	first, s := c.strategies[0], c.strategies[winner]
	switch {
	case first.Grounded() && !s.Grounded():
		return NoticeGroundingUnavailable
	case first.Model() != s.Model():
		return fmt.Sprintf(noticeModelFallback, s.Model())
	default:
		return noticeDegraded
	}
}
