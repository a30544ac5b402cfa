// internal/common/errors/handler.go
package errors

import (
	stderrors "errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"answer-gateway/internal/models"
)

// ErrorHandler turns errors escaping a request into the public error contract.
type ErrorHandler struct {
	logger Logger
	debug  bool
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger, debug bool) *ErrorHandler {
	return &ErrorHandler{logger: logger, debug: debug}
}

// Respond logs err with its upstream detail and writes the generic response.
func (h *ErrorHandler) Respond(c echo.Context, err error, diagnostic []models.AttemptRecord) error {
	stdErr := AsStandardError(err)
	status := HTTPStatus(stdErr)

	fields := map[string]interface{}{
		"errorCode":     string(stdErr.Code),
		"errorKind":     string(EffectiveCode(stdErr)),
		"errorCategory": GetErrorCategory(EffectiveCode(stdErr)),
		"details":       stdErr.Details,
		"status":        status,
		"path":          c.Path(),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields)
	} else {
		h.logger.Warn("request rejected", fields)
	}

	resp := models.ErrorResponse{
		ErrorKind: string(EffectiveCode(stdErr)),
		Message:   PublicMessage(stdErr),
	}
	if h.debug {
		resp.Detail = stdErr.Error()
		resp.Diagnostic = diagnostic
	}
	return c.JSON(status, resp)
}

// HTTPErrorHandler is installed as echo's error handler so router errors
// (unknown route, wrong method) use the same body shape.
func (h *ErrorHandler) HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if stderrors.As(err, &he) {
		kind := ErrCodeBadRequest
		if he.Code >= http.StatusInternalServerError {
			kind = ErrCodeInternal
		}
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		_ = c.JSON(he.Code, models.ErrorResponse{ErrorKind: string(kind), Message: msg})
		return
	}

	_ = h.Respond(c, err, nil)
}
