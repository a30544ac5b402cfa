// internal/handlers/manage-notes/handler.go
package managenotes

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "answer-gateway/internal/common/errors"
	"answer-gateway/internal/common/logger"
	"answer-gateway/internal/common/validation"
	"answer-gateway/internal/models"
)

const (
	Route = "/api/memory"

	maxBodyBytes = 64 << 10
)

type Handler struct {
	store     models.NoteRepository
	validator *validation.Validator
	logger    logger.Logger
}

func NewHandler(store models.NoteRepository, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Handler{
		store:     store,
		validator: validation.MustValidator(validation.NoteRequestSchema),
		logger:    log.With(map[string]interface{}{"route": Route}),
	}
}

// Handle dispatches on the request method.
func (h *Handler) Handle(c echo.Context) error {
	switch c.Request().Method {
	case http.MethodOptions:
		return c.NoContent(http.StatusNoContent)
	case http.MethodGet:
		return h.list(c)
	case http.MethodPost:
		return h.add(c)
	case http.MethodDelete:
		return h.remove(c)
	default:
		return c.JSON(http.StatusMethodNotAllowed, Response{OK: false, Error: "Use GET/POST/DELETE"})
	}
}

func (h *Handler) list(c echo.Context) error {
	items, err := h.store.List(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	if items == nil {
		items = []models.Note{}
	}
	return c.JSON(http.StatusOK, ListResponse{OK: true, Items: items})
}

func (h *Handler) add(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return h.fail(c, apperrors.NewBadRequestError("request body could not be read"))
	}
	if result := h.validator.ValidateBytes(body); !result.Valid {
		return h.fail(c, apperrors.NewBadRequestError(result.Summary()))
	}

	var req AddRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return h.fail(c, apperrors.NewBadRequestError("body is not valid JSON"))
	}

	saved, err := h.store.Add(c.Request().Context(), req.Text)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, Response{OK: true, Saved: saved})
}

// remove deletes one note when ?id= is given and every note otherwise.
func (h *Handler) remove(c echo.Context) error {
	ctx := c.Request().Context()

	id := c.QueryParam("id")
	if id == "" {
		if err := h.store.Clear(ctx); err != nil {
			return h.fail(c, err)
		}
		h.logger.Info("notes cleared", nil)
		return c.JSON(http.StatusOK, Response{OK: true, Cleared: true})
	}

	count, err := h.store.Remove(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, Response{OK: true, Removed: id, Count: &count})
}

func (h *Handler) fail(c echo.Context, err error) error {
	stdErr := apperrors.AsStandardError(err)
	if stdErr.Code == apperrors.ErrCodeBadRequest {
		return c.JSON(http.StatusBadRequest, Response{OK: false, Error: apperrors.PublicMessage(stdErr)})
	}

	h.logger.Error("note store failed", map[string]interface{}{
		"method": c.Request().Method,
		"error":  err.Error(),
	})
	return c.JSON(http.StatusInternalServerError, Response{OK: false, Error: "Note store unavailable."})
}
