// internal/handlers/manage-notes/models.go
package managenotes

import "answer-gateway/internal/models"

type AddRequest struct {
	Text string `json:"text"`
}

// Response is shared by every method; only the fields relevant to the
// operation are set.
type Response struct {
	OK      bool   `json:"ok"`
	Saved   string `json:"saved,omitempty"`
	Removed string `json:"removed,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Cleared bool   `json:"cleared,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ListResponse always carries items, even when the list is empty.
type ListResponse struct {
	OK    bool          `json:"ok"`
	Items []models.Note `json:"items"`
}
