// internal/completion/responses.go
package completion

import (
	"context"
	"net/http"

	"answer-gateway/internal/models"
)

type inputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type fileSearchTool struct {
	Type           string   `json:"type"`
	VectorStoreIDs []string `json:"vector_store_ids,omitempty"`
}

type responsePayload struct {
	Model        string           `json:"model"`
	Instructions string           `json:"instructions,omitempty"`
	Input        []inputMessage   `json:"input"`
	Temperature  *float64         `json:"temperature,omitempty"`
	Tools        []fileSearchTool `json:"tools,omitempty"`
}

func buildInput(history []models.Turn, question string) []inputMessage {
	input := make([]inputMessage, 0, len(history)+1)
	for _, t := range history {
		input = append(input, inputMessage{Role: t.Role, Content: t.Content})
	}
	return append(input, inputMessage{Role: models.RoleUser, Content: question})
}

// CreateResponse performs one synchronous completion (POST /responses).
func (c *Client) CreateResponse(ctx context.Context, req ResponseRequest) (RawResponse, error) {
	payload := responsePayload{
		Model:        req.Model,
		Instructions: req.Instructions,
		Input:        buildInput(req.History, req.Question),
		Temperature:  req.Temperature,
	}
	if req.IndexID != "" {
		payload.Tools = []fileSearchTool{{Type: "file_search", VectorStoreIDs: []string{req.IndexID}}}
	}

	var raw RawResponse
	if err := c.doJSON(ctx, http.MethodPost, "/responses", payload, &raw, false); err != nil {
		return nil, err
	}
	return raw, nil
}
