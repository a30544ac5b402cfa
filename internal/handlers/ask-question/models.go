// internal/handlers/ask-question/models.go
package askquestion

import (
	"context"

	"answer-gateway/internal/models"
)

// Answerer produces an answer for an accepted query.
type Answerer interface {
	Execute(ctx context.Context, q models.Query) (*models.Answer, error)
}

const (
	errMethodNotAllowed = "Only POST is allowed."
	errEmptyMessage     = "message must not be empty"
)
