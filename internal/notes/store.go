// internal/notes/store.go
package notes

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"answer-gateway/internal/common/config"
	apperrors "answer-gateway/internal/common/errors"
	"answer-gateway/internal/models"
)

const idPrefix = "mem_"

// Store is the note repository used by the HTTP handler.
type Store = models.NoteRepository

// Options bound the list. Zero values fall back to the configured defaults.
type Options struct {
	MaxItems  int
	MaxLength int
	Now       func() time.Time
	NewID     func() string
}

func OptionsFromConfig(cfg config.NotesConfig) Options {
	return Options{MaxItems: cfg.MaxItems, MaxLength: cfg.MaxLength}
}

func (o Options) withDefaults() Options {
	if o.MaxItems <= 0 {
		o.MaxItems = 200
	}
	if o.MaxLength <= 0 {
		o.MaxLength = 500
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = func() string { return idPrefix + uuid.NewString() }
	}
	return o
}

// prepare trims text and caps it at max characters. Empty text is rejected.
func prepare(text string, max int) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.NewBadRequestError("missing 'text'")
	}
	if utf8.RuneCountInString(text) > max {
		text = string([]rune(text)[:max])
	}
	return text, nil
}

// contains reports a case-insensitive match.
func contains(list []models.Note, text string) bool {
	for _, n := range list {
		if strings.EqualFold(n.Text, text) {
			return true
		}
	}
	return false
}

// appendBounded adds n and drops the oldest notes beyond max.
func appendBounded(list []models.Note, n models.Note, max int) []models.Note {
	list = append(list, n)
	if len(list) > max {
		list = list[len(list)-max:]
	}
	return list
}
