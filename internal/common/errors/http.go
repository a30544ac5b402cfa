// internal/common/errors/http.go
package errors

import "net/http"

// EffectiveCode is the code reported to callers. An exhausted cascade reports
// the last failure when that failure has its own public status.
func EffectiveCode(err error) ErrorCode {
	stdErr := AsStandardError(err)
	if stdErr == nil {
		return ErrCodeInternal
	}
	if stdErr.Code != ErrCodeCascadeExhausted {
		return stdErr.Code
	}
	switch last := LastReason(stdErr); last.Code {
	case ErrCodeInsufficientQuota, ErrCodeRateLimited, ErrCodeUnauthorized:
		return last.Code
	}
	return ErrCodeCascadeExhausted
}

// HTTPStatus maps an error escaping the orchestrator to a response status.
func HTTPStatus(err error) int {
	switch EffectiveCode(err) {
	case ErrCodeInsufficientQuota:
		return http.StatusPaymentRequired
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the fixed user facing text for err. Upstream
// detail never appears here.
func PublicMessage(err error) string {
	switch code := EffectiveCode(err); code {
	case ErrCodeInsufficientQuota:
		return "The completion service has no remaining credit. Check the account billing."
	case ErrCodeRateLimited:
		return "The completion service is busy. Please try again shortly."
	case ErrCodeUnauthorized:
		return "The completion service API key is invalid or lacks permissions."
	case ErrCodeBadRequest:
		stdErr := AsStandardError(err)
		if stdErr.Details != "" {
			return stdErr.Details
		}
		return stdErr.Message
	default:
		return "Internal failure while generating an answer."
	}
}
