// internal/models/note.go
package models

import "context"

// Note is a short remembered fact shared by all users of the gateway.
type Note struct {
	ID        string `json:"id" db:"id"`
	Text      string `json:"text" db:"text"`
	CreatedAt int64  `json:"ts" db:"created_at"` // unix milliseconds
}

// NoteRepository defines note data access
type NoteRepository interface {
	List(ctx context.Context) ([]Note, error)
	Add(ctx context.Context, text string) (string, error)
	Remove(ctx context.Context, id string) (int, error)
	Clear(ctx context.Context) error
}
