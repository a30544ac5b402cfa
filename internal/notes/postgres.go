// internal/notes/postgres.go
package notes

import (
	"context"
	"database/sql"
	"fmt"

	"answer-gateway/internal/common/logger"
	"answer-gateway/internal/models"
)

const schema = `CREATE TABLE IF NOT EXISTS memory_notes (
	id         TEXT PRIMARY KEY,
	text       TEXT NOT NULL,
	created_at BIGINT NOT NULL
)`

// PostgresStore keeps one row per note in memory_notes.
type PostgresStore struct {
	db     *sql.DB
	opts   Options
	logger logger.Logger
}

func NewPostgresStore(db *sql.DB, opts Options, log logger.Logger) *PostgresStore {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &PostgresStore{db: db, opts: opts.withDefaults(), logger: log}
}

// EnsureSchema creates the notes table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create memory_notes: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.Note, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, text, created_at FROM memory_notes ORDER BY created_at ASC, id ASC`)
	if err != nil {
		observe("list", err)
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	list := []models.Note{}
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.Text, &n.CreatedAt); err != nil {
			observe("list", err)
			return nil, fmt.Errorf("scan note: %w", err)
		}
		list = append(list, n)
	}
	err = rows.Err()
	observe("list", err)
	return list, err
}

func (s *PostgresStore) Add(ctx context.Context, text string) (string, error) {
	text, err := prepare(text, s.opts.MaxLength)
	if err != nil {
		observe("add", err)
		return "", err
	}

	err = s.add(ctx, text)
	observe("add", err)
	if err != nil {
		return "", err
	}
	return text, nil
}

func (s *PostgresStore) add(ctx context.Context, text string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM memory_notes WHERE lower(text) = lower($1))`, text,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check duplicate: %w", err)
	}
	if exists {
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO memory_notes (id, text, created_at) VALUES ($1, $2, $3)`,
		s.opts.NewID(), text, s.opts.Now().UnixMilli(),
	); err != nil {
		return fmt.Errorf("insert note: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM memory_notes WHERE id IN (SELECT id FROM memory_notes ORDER BY created_at DESC, id DESC OFFSET $1)`,
		s.opts.MaxItems,
	)
	if err != nil {
		return fmt.Errorf("trim notes: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Debug("dropped oldest notes", map[string]interface{}{"count": n})
	}

	return tx.Commit()
}

func (s *PostgresStore) Remove(ctx context.Context, id string) (int, error) {
	count, err := s.remove(ctx, id)
	observe("remove", err)
	return count, err
}

func (s *PostgresStore) remove(ctx context.Context, id string) (int, error) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memory_notes WHERE id = $1`, id); err != nil {
		return 0, fmt.Errorf("delete note: %w", err)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_notes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count notes: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memory_notes`)
	observe("clear", err)
	if err != nil {
		return fmt.Errorf("clear notes: %w", err)
	}
	return nil
}
