// internal/models/chat.go
package models

// Turn is one prior message of the conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Query is an accepted question. It is not modified after validation.
type Query struct {
	Text    string
	History []Turn
}

// ChatRequest is the inbound body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
	History []Turn `json:"history,omitempty"`
}

// Citation points at a document the answer was grounded on.
type Citation struct {
	SourceID    string `json:"sourceId"`
	DisplayName string `json:"displayName"`
	Preview     string `json:"preview"`
}

const placeholderPrefix = "source:"

// PlaceholderName is the display name used until a source id is resolved.
func PlaceholderName(sourceID string) string {
	return placeholderPrefix + sourceID
}

// HasPlaceholderName reports whether the display name still needs resolution.
func (c Citation) HasPlaceholderName() bool {
	return c.DisplayName == "" || c.DisplayName == PlaceholderName(c.SourceID)
}

// Answer is the normalized result of one successful strategy.
type Answer struct {
	Text          string          `json:"text"`
	Citations     []Citation      `json:"citations"`
	GroundingUsed bool            `json:"groundingUsed"`
	ModelUsed     string          `json:"modelUsed"`
	Notice        string          `json:"notice,omitempty"`
	Diagnostic    []AttemptRecord `json:"diagnostic,omitempty"`
}

// AttemptRecord is one entry of the per-request attempt trail.
type AttemptRecord struct {
	Strategy   string `json:"strategy"`
	Outcome    string `json:"outcome"`
	Attempts   int    `json:"attempts"`
	ErrorCode  string `json:"errorCode,omitempty"`
	Detail     string `json:"detail,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// ErrorResponse is the failure body returned to callers.
type ErrorResponse struct {
	ErrorKind  string          `json:"errorKind"`
	Message    string          `json:"message"`
	Detail     string          `json:"detail,omitempty"`
	Diagnostic []AttemptRecord `json:"diagnostic,omitempty"`
}
