// internal/common/database/dial.go
package database

import (
	"context"

	"answer-gateway/internal/common/config"
)

type pingCloser interface {
	Ping(ctx context.Context) error
	Close() error
}

// verify pings c and closes it when the ping fails, so a retried dial
// leaves no pool behind.
func verify(ctx context.Context, c pingCloser) error {
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return err
	}
	return nil
}

// DialRedis builds a client and checks the server answers.
func DialRedis(ctx context.Context, cfg config.RedisConfig) (*RedisClient, error) {
	client, err := NewRedis(cfg)
	if err != nil {
		return nil, err
	}
	if err := verify(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

// DialPostgres opens the pool and checks the server answers.
func DialPostgres(ctx context.Context, cfg config.PostgresConfig) (*PostgresClient, error) {
	client, err := NewPostgres(cfg)
	if err != nil {
		return nil, err
	}
	if err := verify(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}
