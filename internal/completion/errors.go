// internal/completion/errors.go
package completion

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	apperrors "answer-gateway/internal/common/errors"
)

// apiError is the error object returned by the completion service.
type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
	Param   string `json:"param"`
}

type errorEnvelope struct {
	Error *apiError `json:"error"`
}

// Codes meaning the requested capability (tool, parameter or model) is not
// available on this endpoint or account.
var unsupportedCodes = map[string]bool{
	"unknown_parameter":     true,
	"invalid_value":         true,
	"unsupported_parameter": true,
	"unsupported_value":     true,
	"model_not_found":       true,
}

// Last resort when an upstream omits structured codes.
var unsupportedPhrases = []string{
	"unknown parameter",
	"unrecognized request argument",
	"invalid value: 'file_search'",
	"model not found",
	"does not exist or you do not have access",
	"is not supported",
}

const maxDetailLen = 512

// classifyHTTP maps a non-2xx response to the error taxonomy.
func classifyHTTP(status int, body []byte) *apperrors.StandardError {
	var env errorEnvelope
	_ = json.Unmarshal(body, &env)
	apiErr := env.Error
	if apiErr == nil {
		apiErr = &apiError{Message: strings.TrimSpace(truncate(string(body), maxDetailLen))}
	}

	detail := fmt.Sprintf("status %d", status)
	if apiErr.Code != "" {
		detail += ", code " + apiErr.Code
	}
	if apiErr.Param != "" {
		detail += ", param " + apiErr.Param
	}
	if apiErr.Message != "" {
		detail += ": " + truncate(apiErr.Message, maxDetailLen)
	}

	var stdErr *apperrors.StandardError
	switch {
	case apiErr.Code == "insufficient_quota" || apiErr.Type == "insufficient_quota" || status == http.StatusPaymentRequired:
		stdErr = apperrors.NewInsufficientQuotaError(detail)
	case status == http.StatusTooManyRequests:
		stdErr = apperrors.NewRateLimitedError(detail)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		stdErr = apperrors.NewUnauthorizedError(detail)
	case status == http.StatusRequestTimeout || status >= 500:
		stdErr = apperrors.NewServiceUnavailableError(stderrors.New(detail))
	case status >= 400 && isUnsupported(apiErr):
		stdErr = apperrors.NewUnsupportedFeatureError(detail)
	case status >= 400:
		stdErr = apperrors.NewBadRequestError(detail)
	default:
		stdErr = apperrors.NewMalformedResponseError(stderrors.New(detail))
	}

	return stdErr.
		WithMetadata("status", status).
		WithMetadata("upstreamCode", apiErr.Code)
}

func isUnsupported(apiErr *apiError) bool {
	if unsupportedCodes[strings.ToLower(apiErr.Code)] {
		return true
	}
	msg := strings.ToLower(apiErr.Message)
	for _, phrase := range unsupportedPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// classifyTransport maps a failure to reach the service.
func classifyTransport(err error) *apperrors.StandardError {
	if stderrors.Is(err, context.Canceled) {
		return apperrors.NewServiceUnavailableError(fmt.Errorf("request cancelled: %w", err))
	}
	return apperrors.NewServiceUnavailableError(err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
