// internal/chat/strategy/job_based.go
package strategy

import (
	"context"

	"answer-gateway/internal/chat/attempt"
	"answer-gateway/internal/chat/poller"
	apperrors "answer-gateway/internal/common/errors"
	"answer-gateway/internal/completion"
	"answer-gateway/internal/models"
)

// RunClient is the job-based surface of the completion service.
type RunClient interface {
	CreateThreadAndRun(ctx context.Context, req completion.RunRequest) (*completion.Run, error)
	GetRun(ctx context.Context, threadID, runID string) (*completion.Run, error)
	LatestMessage(ctx context.Context, threadID, runID string) (completion.RawResponse, error)
}

// JobBased submits a run, polls it to a terminal state and fetches the
// message it produced.
type JobBased struct {
	spec   Spec
	client RunClient
	poller *poller.Poller
}

func NewJobBased(spec Spec, client RunClient, p *poller.Poller) *JobBased {
	return &JobBased{spec: spec, client: client, poller: p}
}

func (j *JobBased) Name() string { return j.spec.Name }
func (j *JobBased) Kind() Kind { return KindJobBased }
func (j *JobBased) Grounded() bool { return j.spec.grounded() }
func (j *JobBased) Model() string { return j.spec.Model }
func (j *JobBased) MaxAttempts() int { return j.spec.Attempts }

func (j *JobBased) Attempt(ctx context.Context, q models.Query) Outcome {
	if j.spec.AssistantID == "" {
		return attempt.FromError(apperrors.NewUnsupportedFeatureError("job-based answers need an assistant id"))
	}

	submit := func(ctx context.Context) (*poller.Job, error) {
		run, err := j.client.CreateThreadAndRun(ctx, completion.RunRequest{
			AssistantID:  j.spec.AssistantID,
			Model:        j.spec.Model,
			Instructions: j.spec.Instructions,
			History:      q.History,
			Question:     q.Text,
			Temperature:  j.spec.Temperature,
			IndexID:      j.spec.IndexID,
		})
		if err != nil {
			return nil, err
		}
		return runJob(run), nil
	}
	status := func(ctx context.Context, job *poller.Job) (*poller.Job, error) {
		run, err := j.client.GetRun(ctx, job.Scope, job.ID)
		if err != nil {
			return nil, err
		}
		return runJob(run), nil
	}

	job, err := j.poller.Await(ctx, submit, status)
	if err != nil {
		if stdErr := apperrors.AsStandardError(err); stdErr.Code == apperrors.ErrCodeJobFailed && job != nil {
			if run, ok := job.Result.(*completion.Run); ok {
				err = run.FailureError()
			}
		}
		return attempt.FromError(err)
	}

	return attempt.Of(j.client.LatestMessage(ctx, job.Scope, job.ID))
}

func runJob(run *completion.Run) *poller.Job {
	return &poller.Job{
		ID:     run.ID,
		Scope:  run.ThreadID,
		Status: runStatus(run.Status),
		Result: run,
	}
}

// runStatus maps remote run states onto the poller's state machine. A run
// waiting for tool output can never progress here, so it counts as failed.
func runStatus(s string) poller.Status {
	switch s {
	case "queued":
		return poller.StatusQueued
	case "completed":
		return poller.StatusCompleted
	case "failed", "incomplete", "requires_action":
		return poller.StatusFailed
	case "cancelled":
		return poller.StatusCancelled
	case "expired":
		return poller.StatusExpired
	default:
		return poller.StatusRunning
	}
}
