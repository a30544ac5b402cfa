// internal/common/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Degradation signals: the requested capability is not available upstream.
	ErrCodeUnsupportedFeature ErrorCode = "UNSUPPORTED_FEATURE"

	// Transient failures, eligible for retry.
	ErrCodeRateLimited        ErrorCode = "RATE_LIMITED"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodePollTimeout        ErrorCode = "POLL_TIMEOUT"

	// Fatal failures for the current strategy.
	ErrCodeInsufficientQuota ErrorCode = "INSUFFICIENT_QUOTA"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeJobFailed         ErrorCode = "JOB_FAILED"
	ErrCodeBadRequest        ErrorCode = "BAD_REQUEST"
	ErrCodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE"

	// Boundary codes.
	ErrCodeCascadeExhausted ErrorCode = "CASCADE_EXHAUSTED"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// Class groups error codes by how the strategy cascade reacts to them.
type Class string

const (
	ClassTransient   Class = "transient"
	ClassUnsupported Class = "unsupported"
	ClassFatal       Class = "fatal"
	ClassBoundary    Class = "boundary"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Class returns the cascade class of the error code.
func (e *StandardError) Class() Class {
	return ClassOf(e.Code)
}

// WithMetadata returns e after merging key/value into its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: IsTransient(code),
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func detailsOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// NewUnsupportedFeatureError signals that a strategy's capability was rejected upstream.
func NewUnsupportedFeatureError(details string) *StandardError {
	return newError(ErrCodeUnsupportedFeature, "Requested capability is not supported by the completion service", details, nil)
}

func NewRateLimitedError(details string) *StandardError {
	return newError(ErrCodeRateLimited, "Completion service rate limit reached", details, nil)
}

func NewServiceUnavailableError(err error) *StandardError {
	return newError(ErrCodeServiceUnavailable, "Completion service unavailable", detailsOf(err), err)
}

// NewPollTimeoutError is raised when a job does not reach a terminal state before the deadline.
func NewPollTimeoutError(jobID string, deadline time.Duration) *StandardError {
	return newError(ErrCodePollTimeout, "Job did not finish before the deadline",
		fmt.Sprintf("jobId: %s, deadline: %s", jobID, deadline), nil)
}

func NewInsufficientQuotaError(details string) *StandardError {
	return newError(ErrCodeInsufficientQuota, "Completion service quota exhausted", details, nil)
}

func NewUnauthorizedError(details string) *StandardError {
	return newError(ErrCodeUnauthorized, "Completion service rejected the credentials", details, nil)
}

// NewJobFailedError reports a job that ended in a non-completed terminal state.
func NewJobFailedError(jobID, state string) *StandardError {
	return newError(ErrCodeJobFailed, fmt.Sprintf("Job ended in state %q", state),
		fmt.Sprintf("jobId: %s", jobID), nil).WithMetadata("state", state)
}

func NewBadRequestError(details string) *StandardError {
	return newError(ErrCodeBadRequest, "Invalid request", details, nil)
}

func NewMalformedResponseError(err error) *StandardError {
	return newError(ErrCodeMalformedResponse, "Completion service returned an unreadable response", detailsOf(err), err)
}

// NewCascadeExhaustedError wraps the last failure seen after every strategy was tried.
func NewCascadeExhaustedError(last *StandardError, attempted int) *StandardError {
	e := newError(ErrCodeCascadeExhausted, "No answer strategy succeeded",
		fmt.Sprintf("strategies attempted: %d", attempted), nil)
	if last != nil {
		e.cause = last
		e.Details = fmt.Sprintf("strategies attempted: %d, last: %s", attempted, last.Error())
		e.WithMetadata("lastCode", string(last.Code))
	}
	return e
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", detailsOf(err), err)
}

// AsStandardError returns err as a StandardError, wrapping unknown errors as INTERNAL_ERROR.
func AsStandardError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// LastReason returns the failure recorded by a CASCADE_EXHAUSTED error, or err itself.
func LastReason(err error) *StandardError {
	stdErr := AsStandardError(err)
	if stdErr == nil || stdErr.Code != ErrCodeCascadeExhausted {
		return stdErr
	}
	var last *StandardError
	if stderrors.As(stdErr.cause, &last) {
		return last
	}
	return stdErr
}

// ClassOf returns the cascade class of code.
func ClassOf(code ErrorCode) Class {
	switch code {
	case ErrCodeUnsupportedFeature:
		return ClassUnsupported
	case ErrCodeRateLimited, ErrCodeServiceUnavailable, ErrCodePollTimeout:
		return ClassTransient
	case ErrCodeInsufficientQuota, ErrCodeUnauthorized, ErrCodeJobFailed, ErrCodeBadRequest, ErrCodeMalformedResponse:
		return ClassFatal
	default:
		return ClassBoundary
	}
}

// IsTransient checks if an error code is retryable.
func IsTransient(code ErrorCode) bool {
	return ClassOf(code) == ClassTransient
}

// GetErrorCategory returns the category of the error code, used as a metrics label.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeRateLimited, ErrCodeInsufficientQuota:
		return "capacity"
	case ErrCodeServiceUnavailable, ErrCodePollTimeout:
		return "availability"
	case ErrCodeUnauthorized:
		return "authentication"
	case ErrCodeUnsupportedFeature:
		return "capability"
	case ErrCodeBadRequest:
		return "validation"
	case ErrCodeJobFailed, ErrCodeMalformedResponse:
		return "upstream"
	default:
		return "internal"
	}
}
