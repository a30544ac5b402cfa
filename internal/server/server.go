// internal/server/server.go
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "answer-gateway/internal/common/errors"
	"answer-gateway/internal/common/logger"
	"answer-gateway/internal/common/metrics"
	"answer-gateway/internal/common/observability"
	askquestion "answer-gateway/internal/handlers/ask-question"
	managenotes "answer-gateway/internal/handlers/manage-notes"
	"answer-gateway/internal/models"
)

const readyTimeout = 2 * time.Second

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

type Options struct {
	AllowedOrigins []string
	Debug          bool
	MaxBodyBytes   int64
}

type Dependencies struct {
	Answerer askquestion.Answerer
	// Notes is optional; without it /api/memory is not mounted.
	Notes         models.NoteRepository
	Checks        map[string]Check
	Observability *observability.Observability
	Logger        logger.Logger
}

// New returns an echo instance with middleware and routes installed.
func New(opts Options, deps Dependencies) *echo.Echo {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperrors.NewErrorHandler(log, opts.Debug).HTTPErrorHandler

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderXRequestID},
	}))
	e.Use(requestLogger(log, deps.Observability))

	ask := askquestion.NewHandler(&askquestion.Config{Debug: opts.Debug, MaxBodyBytes: opts.MaxBodyBytes}, deps.Answerer, log)
	e.Any(askquestion.Route, ask.Handle)

	if deps.Notes != nil {
		notes := managenotes.NewHandler(deps.Notes, log)
		e.Any(managenotes.Route, notes.Handle)
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	e.GET("/ready", readyHandler(deps.Checks, log))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}

// readyHandler runs every check and answers 503 when any of them fails.
func readyHandler(checks map[string]Check, log logger.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), readyTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				log.Warn("readiness check failed", map[string]interface{}{"dependency": name, "error": err.Error()})
				results[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		state := "ready"
		if status != http.StatusOK {
			state = "not_ready"
		}
		return c.JSON(status, map[string]interface{}{
			"status":       state,
			"dependencies": results,
			"time":         time.Now().Format(time.RFC3339),
		})
	}
}

func requestLogger(log logger.Logger, obs *observability.Observability) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return p == "/health" || p == "/metrics"
		},
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRoutePath: true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			route := v.RoutePath
			if route == "" {
				route = "unmatched"
			}
			metrics.HTTPRequests.WithLabelValues(route, v.Method, strconv.Itoa(v.Status)).Inc()
			metrics.HTTPDuration.WithLabelValues(route).Observe(v.Latency.Seconds())
			obs.RecordRequest(c.Request().Context(), route, v.Status, v.Latency)

			fields := map[string]interface{}{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
				"request_id": v.RequestID,
			}
			if v.Error != nil {
				fields["error"] = v.Error.Error()
				log.Error("request failed", fields)
				return nil
			}
			log.Info("request completed", fields)
			return nil
		},
	})
}
