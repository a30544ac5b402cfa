// internal/completion/jobs.go
package completion

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	apperrors "answer-gateway/internal/common/errors"
)

type threadPayload struct {
	Messages []inputMessage `json:"messages"`
}

type runPayload struct {
	AssistantID   string                 `json:"assistant_id"`
	Model         string                 `json:"model,omitempty"`
	Instructions  string                 `json:"instructions,omitempty"`
	Temperature   *float64               `json:"temperature,omitempty"`
	Thread        threadPayload          `json:"thread"`
	Tools         []fileSearchTool       `json:"tools,omitempty"`
	ToolResources map[string]interface{} `json:"tool_resources,omitempty"`
}

// CreateThreadAndRun creates a conversation holding the history and question
// and enqueues a run on it (POST /threads/runs).
func (c *Client) CreateThreadAndRun(ctx context.Context, req RunRequest) (*Run, error) {
	payload := runPayload{
		AssistantID:  req.AssistantID,
		Model:        req.Model,
		Instructions: req.Instructions,
		Thread:       threadPayload{Messages: buildInput(req.History, req.Question)},
		Temperature:  req.Temperature,
	}
	if req.IndexID != "" {
		payload.Tools = []fileSearchTool{{Type: "file_search"}}
		payload.ToolResources = map[string]interface{}{
			"file_search": map[string]interface{}{"vector_store_ids": []string{req.IndexID}},
		}
	}

	var run Run
	if err := c.doJSON(ctx, http.MethodPost, "/threads/runs", payload, &run, true); err != nil {
		return nil, err
	}
	if run.ID == "" || run.ThreadID == "" {
		return nil, apperrors.NewMalformedResponseError(fmt.Errorf("run response missing id or thread_id"))
	}
	return &run, nil
}

// GetRun returns the current state of a run.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	path := fmt.Sprintf("/threads/%s/runs/%s", url.PathEscape(threadID), url.PathEscape(runID))
	var run Run
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &run, true); err != nil {
		return nil, err
	}
	return &run, nil
}

// LatestMessage returns the newest message produced by a completed run.
func (c *Client) LatestMessage(ctx context.Context, threadID, runID string) (RawResponse, error) {
	q := url.Values{}
	q.Set("run_id", runID)
	q.Set("order", "desc")
	q.Set("limit", "1")
	path := fmt.Sprintf("/threads/%s/messages?%s", url.PathEscape(threadID), q.Encode())

	var list messageList
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &list, true); err != nil {
		return nil, err
	}
	if len(list.Data) == 0 {
		return nil, apperrors.NewMalformedResponseError(fmt.Errorf("run %s produced no message", runID))
	}
	return RawResponse(list.Data[0]), nil
}

// FailureError classifies why a run stopped without completing. Runs that
// failed on a rate limit or a server error are worth re-running.
func (r *Run) FailureError() *apperrors.StandardError {
	if r.LastError == nil || r.LastError.Code == "" {
		return apperrors.NewJobFailedError(r.ID, r.Status)
	}

	detail := fmt.Sprintf("run %s %s, code %s: %s", r.ID, r.Status, r.LastError.Code, truncate(r.LastError.Message, maxDetailLen))
	var stdErr *apperrors.StandardError
	switch r.LastError.Code {
	case "rate_limit_exceeded":
		stdErr = apperrors.NewRateLimitedError(detail)
	case "insufficient_quota":
		stdErr = apperrors.NewInsufficientQuotaError(detail)
	case "server_error":
		stdErr = apperrors.NewServiceUnavailableError(fmt.Errorf("%s", detail))
	default:
		stdErr = apperrors.NewJobFailedError(r.ID, r.Status)
		stdErr.Details = detail
	}
	return stdErr.WithMetadata("upstreamCode", r.LastError.Code)
}
