// internal/handlers/ask-question/handler.go
package askquestion

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"answer-gateway/internal/chat/strategy"
	apperrors "answer-gateway/internal/common/errors"
	"answer-gateway/internal/common/logger"
	"answer-gateway/internal/common/validation"
	"answer-gateway/internal/models"
)

const (
	Route = "/api/chat"
)

type Handler struct {
	config    *Config
	answerer  Answerer
	validator *validation.Validator
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, answerer Answerer, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 1 << 20
	}
	log = log.With(map[string]interface{}{"route": Route})
	return &Handler{
		config:    config,
		answerer:  answerer,
		validator: validation.MustValidator(validation.ChatRequestSchema),
		errors:    apperrors.NewErrorHandler(log, config.Debug),
		logger:    log,
	}
}

// Handle serves POST /api/chat.
func (h *Handler) Handle(c echo.Context) error {
	if c.Request().Method != http.MethodPost {
		return c.JSON(http.StatusMethodNotAllowed, models.ErrorResponse{
			ErrorKind: string(apperrors.ErrCodeBadRequest),
			Message:   errMethodNotAllowed,
		})
	}

	req, err := h.parse(c)
	if err != nil {
		return h.errors.Respond(c, err, nil)
	}

	requestID := c.Response().Header().Get(echo.HeaderXRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	log := h.logger.With(map[string]interface{}{"requestId": requestID})
	ctx := logger.WithContext(c.Request().Context(), log)

	query := models.Query{
		Text:    strings.TrimSpace(req.Message),
		History: req.History,
	}

	log.Info("processing question", map[string]interface{}{
		"messageLength": len(query.Text),
		"historyTurns":  len(query.History),
	})

	start := time.Now()
	answer, err := h.answerer.Execute(ctx, query)
	if err != nil {
		return h.errors.Respond(c, err, strategy.Diagnostic(err))
	}

	log.Info("question answered", map[string]interface{}{
		"durationMs":    time.Since(start).Milliseconds(),
		"groundingUsed": answer.GroundingUsed,
		"model":         answer.ModelUsed,
		"fallback":      answer.Notice != "",
	})
	return c.JSON(http.StatusOK, answer)
}

// parse validates the body against the request schema before decoding it.
func (h *Handler) parse(c echo.Context) (*models.ChatRequest, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, h.config.MaxBodyBytes))
	if err != nil {
		return nil, apperrors.NewBadRequestError("request body could not be read")
	}

	result := h.validator.ValidateBytes(body)
	if !result.Valid {
		return nil, apperrors.NewBadRequestError(result.Summary())
	}

	var req models.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, apperrors.NewBadRequestError("body is not valid JSON")
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, apperrors.NewBadRequestError(errEmptyMessage)
	}
	return &req, nil
}
