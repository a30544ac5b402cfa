// internal/notes/redis.go
package notes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"answer-gateway/internal/common/logger"
	"answer-gateway/internal/common/metrics"
	"answer-gateway/internal/models"
)

const maxTxRetries = 5

// RedisStore keeps the whole list as one JSON value. Writes run under WATCH
// so concurrent gateway instances never lose an update.
type RedisStore struct {
	client *redis.Client
	key    string
	opts   Options
	logger logger.Logger
}

func NewRedisStore(client *redis.Client, key string, opts Options, log logger.Logger) *RedisStore {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &RedisStore{client: client, key: key, opts: opts.withDefaults(), logger: log}
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) load(ctx context.Context, g getter) ([]models.Note, error) {
	data, err := g.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []models.Note{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read notes: %w", err)
	}

	list := []models.Note{}
	if err := json.Unmarshal(data, &list); err != nil {
		s.logger.Warn("stored notes are not valid JSON, starting empty", map[string]interface{}{
			"key":   s.key,
			"error": err.Error(),
		})
		return []models.Note{}, nil
	}
	return list, nil
}

// update applies fn to the current list and writes the result if fn asks
// for it. The read-modify-write is retried when another writer interferes.
func (s *RedisStore) update(ctx context.Context, fn func([]models.Note) ([]models.Note, bool)) ([]models.Note, error) {
	var result []models.Note

	txf := func(tx *redis.Tx) error {
		list, err := s.load(ctx, tx)
		if err != nil {
			return err
		}
		next, write := fn(list)
		result = next
		if !write {
			return nil
		}

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode notes: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, data, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, s.key)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
		s.logger.Debug("notes transaction conflicted, retrying", map[string]interface{}{"attempt": i + 1})
	}
	return nil, fmt.Errorf("notes update did not commit after %d attempts", maxTxRetries)
}

func (s *RedisStore) List(ctx context.Context) ([]models.Note, error) {
	list, err := s.load(ctx, s.client)
	observe("list", err)
	return list, err
}

// Add stores text unless an equal note (ignoring case) exists. It returns the
// text as saved.
func (s *RedisStore) Add(ctx context.Context, text string) (string, error) {
	text, err := prepare(text, s.opts.MaxLength)
	if err != nil {
		observe("add", err)
		return "", err
	}

	_, err = s.update(ctx, func(list []models.Note) ([]models.Note, bool) {
		if contains(list, text) {
			return list, false
		}
		return appendBounded(list, models.Note{
			ID:        s.opts.NewID(),
			Text:      text,
			CreatedAt: s.opts.Now().UnixMilli(),
		}, s.opts.MaxItems), true
	})
	observe("add", err)
	if err != nil {
		return "", err
	}
	return text, nil
}

// Remove deletes the note with id and returns how many remain.
func (s *RedisStore) Remove(ctx context.Context, id string) (int, error) {
	list, err := s.update(ctx, func(list []models.Note) ([]models.Note, bool) {
		next := make([]models.Note, 0, len(list))
		for _, n := range list {
			if n.ID != id {
				next = append(next, n)
			}
		}
		return next, len(next) != len(list)
	})
	observe("remove", err)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	err := s.client.Set(ctx, s.key, "[]", 0).Err()
	observe("clear", err)
	return err
}

func observe(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.NotesOperations.WithLabelValues(op, status).Inc()
}
