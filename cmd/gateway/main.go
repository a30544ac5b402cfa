// cmd/gateway/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"answer-gateway/internal/chat/citations"
	"answer-gateway/internal/chat/clock"
	"answer-gateway/internal/chat/poller"
	"answer-gateway/internal/chat/retry"
	"answer-gateway/internal/chat/strategy"
	"answer-gateway/internal/common/config"
	"answer-gateway/internal/common/database"
	"answer-gateway/internal/common/logger"
	"answer-gateway/internal/common/observability"
	"answer-gateway/internal/completion"
	"answer-gateway/internal/models"
	"answer-gateway/internal/notes"
	"answer-gateway/internal/server"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format,
		zap.String("service", cfg.App.Name),
	)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	zapLog.Info("Starting answer gateway...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New(observability.Options{
		ServiceName:    cfg.Observability.ServiceName,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
	}, log)

	checks := map[string]server.Check{}

	// --- Redis: note store and citation cache ---
	var rdb *database.RedisClient
	if cfg.Notes.Backend == config.NotesBackendRedis || cfg.Citations.CacheEnabled {
		err = retryWithBackoff(ctx, func() error {
			var err error
			rdb, err = database.DialRedis(ctx, cfg.Database.Redis)
			return err
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		checks["redis"] = rdb.Ping
		zapLog.Info("Redis connected successfully")
	}

	// --- PostgreSQL: note store ---
	var pg *database.PostgresClient
	if cfg.Notes.Backend == config.NotesBackendPostgres {
		err = retryWithBackoff(ctx, func() error {
			var err error
			pg, err = database.DialPostgres(ctx, cfg.Database.Postgres)
			return err
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		checks["postgres"] = pg.Ping
		zapLog.Info("PostgreSQL connected successfully")
	}

	var noteStore models.NoteRepository
	switch cfg.Notes.Backend {
	case config.NotesBackendPostgres:
		store := notes.NewPostgresStore(pg.DB, notes.OptionsFromConfig(cfg.Notes), log)
		if err := store.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("note schema setup failed", zap.Error(err))
		}
		noteStore = store
	default:
		noteStore = notes.NewRedisStore(rdb.Client, cfg.Notes.Key, notes.OptionsFromConfig(cfg.Notes), log)
	}

	// --- Completion service and strategies ---
	client := completion.NewClient(completion.LoadConfig(cfg.Completion), log)

	clk := clock.Real()
	jobPoller := poller.New(config.GetDuration(cfg.Jobs.PollInterval), config.GetDuration(cfg.Jobs.Deadline), clk, log)

	strategies, skipped := strategy.FromConfig(cfg, client, jobPoller)
	if len(skipped) > 0 {
		zapLog.Warn("document index not configured, grounded strategies disabled", zap.Strings("skipped", skipped))
	}
	for i, s := range strategies {
		zapLog.Info("strategy registered",
			zap.Int("order", i),
			zap.String("name", s.Name()),
			zap.String("kind", string(s.Kind())),
			zap.Bool("grounded", s.Grounded()),
			zap.String("model", s.Model()),
		)
	}

	var lookup citations.Lookup = client
	if cfg.Citations.CacheEnabled {
		lookup = citations.NewRedisLookupCache(client, rdb.Client, time.Duration(cfg.Citations.CacheTTL)*time.Second, log)
	}

	cascade := strategy.NewCascade(strategies, strategy.Options{
		Retry:         retry.New(cfg.Retry.MaxAttempts, config.GetDuration(cfg.Retry.BaseDelay), clk),
		Lookup:        lookup,
		LookupTimeout: config.GetDuration(cfg.Citations.Timeout),
		Tracer:        obs.Tracer(),
		Clock:         clk,
		Logger:        log,
		Debug:         cfg.Debug,
	})

	e := server.New(server.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Debug:          cfg.Debug,
	}, server.Dependencies{
		Answerer:      cascade,
		Notes:         noteStore,
		Checks:        checks,
		Observability: obs,
		Logger:        log,
	})

	// --- Serve until signalled ---
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := e.Start(cfg.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		zapLog.Info("Shutdown signal received, draining requests...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
		defer cancel()
		err := e.Shutdown(shutdownCtx)
		obs.Shutdown(shutdownCtx)
		return err
	})

	if err := g.Wait(); err != nil {
		zapLog.Error("shutdown error", zap.Error(err))
		os.Exit(1)
	}

	zapLog.Info("Answer gateway stopped gracefully")
}
