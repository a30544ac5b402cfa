// internal/chat/poller/poller.go
package poller

import (
	"context"
	"errors"
	"time"

	"answer-gateway/internal/chat/clock"
	apperrors "answer-gateway/internal/common/errors"
	"answer-gateway/internal/common/logger"
	"answer-gateway/internal/common/metrics"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Terminal reports whether s is absorbing.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Job is a remote unit of work. Scope identifies its owner (a conversation
// or an index) when the status endpoint needs it.
type Job struct {
	ID     string
	Scope  string
	Status Status
	Result interface{}
}

type SubmitFunc func(ctx context.Context) (*Job, error)
type StatusFunc func(ctx context.Context, job *Job) (*Job, error)

type Poller struct {
	Interval time.Duration
	Deadline time.Duration
	Clock    clock.Clock
	logger   logger.Logger
}

func New(interval, deadline time.Duration, clk clock.Clock, log logger.Logger) *Poller {
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Poller{Interval: interval, Deadline: deadline, Clock: clk, logger: log}
}

// Await submits a job and checks its status every Interval until it is
// terminal. A completed job is returned as is. Other terminal states yield
// JOB_FAILED. The job is abandoned with POLL_TIMEOUT no later than
// Deadline+Interval after submission: waits shrink to the remaining budget
// and every status call runs under it. The remote job is not cancelled.
func (p *Poller) Await(ctx context.Context, submit SubmitFunc, status StatusFunc) (*Job, error) {
	start := p.Clock.Now()

	job, err := submit(ctx)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, apperrors.NewMalformedResponseError(errors.New("job submission returned no job"))
	}

	log := p.logger.With(map[string]interface{}{"jobId": job.ID})
	log.Debug("job submitted", map[string]interface{}{"status": string(job.Status)})

	for !job.Status.Terminal() {
		wait := p.Interval
		if remaining := p.Deadline - p.Clock.Now().Sub(start); remaining < wait {
			wait = remaining
		}
		if wait > 0 {
			if err := p.Clock.Sleep(ctx, wait); err != nil {
				return job, apperrors.NewServiceUnavailableError(err)
			}
		}

		next, err := p.check(ctx, status, job, p.Deadline+p.Interval-p.Clock.Now().Sub(start))
		switch {
		case err == nil:
			job = next
			metrics.JobPolls.WithLabelValues(string(job.Status)).Inc()
		case apperrors.AsStandardError(err).Code == apperrors.ErrCodePollTimeout:
			log.Warn("job status check ran past the deadline", map[string]interface{}{"error": err.Error()})
			return job, err
		case apperrors.IsTransient(apperrors.AsStandardError(err).Code):
			log.Warn("job status check failed, will poll again", map[string]interface{}{"error": err.Error()})
		default:
			return job, err
		}

		if job.Status.Terminal() {
			break
		}
		if elapsed := p.Clock.Now().Sub(start); elapsed >= p.Deadline {
			log.Warn("job did not finish before deadline", map[string]interface{}{
				"elapsedMs": elapsed.Milliseconds(),
				"status":    string(job.Status),
			})
			return job, apperrors.NewPollTimeoutError(job.ID, p.Deadline)
		}
	}

	if job.Status != StatusCompleted {
		return job, apperrors.NewJobFailedError(job.ID, string(job.Status))
	}
	return job, nil
}

// check runs one status call bounded by budget. Running out of budget is a
// POLL_TIMEOUT, not a transport failure.
func (p *Poller) check(ctx context.Context, status StatusFunc, job *Job, budget time.Duration) (*Job, error) {
	if budget <= 0 {
		return nil, apperrors.NewPollTimeoutError(job.ID, p.Deadline)
	}
	statusCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	next, err := status(statusCtx, job)
	if err != nil {
		if ctx.Err() == nil && errors.Is(statusCtx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.NewPollTimeoutError(job.ID, p.Deadline)
		}
		return nil, err
	}
	if next == nil {
		return nil, apperrors.NewMalformedResponseError(errors.New("job status returned no job"))
	}
	if next.ID == "" {
		next.ID = job.ID
	}
	if next.Scope == "" {
		next.Scope = job.Scope
	}
	return next, nil
}
