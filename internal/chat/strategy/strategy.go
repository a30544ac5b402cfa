// internal/chat/strategy/strategy.go
package strategy

import (
	"context"

	"answer-gateway/internal/chat/attempt"
	"answer-gateway/internal/completion"
	"answer-gateway/internal/models"
)

type Kind string

const (
	KindSynchronous Kind = "synchronous"
	KindJobBased    Kind = "job_based"
)

// Outcome is the classified result of one strategy attempt.
type Outcome = attempt.Outcome

// Strategy is one way of asking the completion service a question.
type Strategy interface {
	Name() string
	Kind() Kind
	Grounded() bool
	Model() string
	// MaxAttempts overrides the retry budget when positive.
	MaxAttempts() int
	// Attempt performs a single try. Job-based strategies poll inside it.
	Attempt(ctx context.Context, q models.Query) Outcome
}

// Spec is the static description shared by every strategy variant.
// Grounding is requested when IndexID is non-empty.
type Spec struct {
	Name         string
	Model        string
	Instructions string
	Temperature  *float64
	IndexID      string
	AssistantID  string
	Attempts     int
}

func (s Spec) grounded() bool { return s.IndexID != "" }

// ResponseCreator performs synchronous completions.
type ResponseCreator interface {
	CreateResponse(ctx context.Context, req completion.ResponseRequest) (completion.RawResponse, error)
}

// Synchronous answers with a single request/response call.
type Synchronous struct {
	spec   Spec
	client ResponseCreator
}

func NewSynchronous(spec Spec, client ResponseCreator) *Synchronous {
	return &Synchronous{spec: spec, client: client}
}

func (s *Synchronous) Name() string { return s.spec.Name }
func (s *Synchronous) Kind() Kind { return KindSynchronous }
func (s *Synchronous) Grounded() bool { return s.spec.grounded() }
func (s *Synchronous) Model() string { return s.spec.Model }
func (s *Synchronous) MaxAttempts() int { return s.spec.Attempts }

func (s *Synchronous) Attempt(ctx context.Context, q models.Query) Outcome {
	raw, err := s.client.CreateResponse(ctx, completion.ResponseRequest{
		Model:        s.spec.Model,
		Instructions: s.spec.Instructions,
		History:      q.History,
		Question:     q.Text,
		Temperature:  s.spec.Temperature,
		IndexID:      s.spec.IndexID,
	})
	return attempt.Of(raw, err)
}
