// internal/chat/attempt/outcome.go
package attempt

import (
	apperrors "answer-gateway/internal/common/errors"
	"answer-gateway/internal/completion"
)

// Kind is the class of an attempt result.
type Kind int

const (
	KindSuccess Kind = iota
	KindTransientFailure
	KindUnsupportedFeature
	KindFatalFailure
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindTransientFailure:
		return "transient"
	case KindUnsupportedFeature:
		return "unsupported"
	case KindFatalFailure:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome carries either the raw response of a success or the classified failure.
type Outcome struct {
	Kind     Kind
	Raw      completion.RawResponse
	Err      *apperrors.StandardError
	Attempts int
}

func Success(raw completion.RawResponse) Outcome {
	return Outcome{Kind: KindSuccess, Raw: raw, Attempts: 1}
}

// FromError classifies err by its error code. Unclassified errors are fatal.
func FromError(err error) Outcome {
	stdErr := apperrors.AsStandardError(err)
	kind := KindFatalFailure
	switch stdErr.Class() {
	case apperrors.ClassTransient:
		kind = KindTransientFailure
	case apperrors.ClassUnsupported:
		kind = KindUnsupportedFeature
	}
	return Outcome{Kind: kind, Err: stdErr, Attempts: 1}
}

// Of turns a (response, error) pair into an Outcome.
func Of(raw completion.RawResponse, err error) Outcome {
	if err != nil {
		return FromError(err)
	}
	return Success(raw)
}

func (o Outcome) Succeeded() bool { return o.Kind == KindSuccess }

// Code returns the failure code, or "" on success.
func (o Outcome) Code() apperrors.ErrorCode {
	if o.Err == nil {
		return ""
	}
	return o.Err.Code
}
