package protocol

import (
	"errors"
	"fmt"
)

// Kind classifies a failed generation call. Exactly three kinds exist:
// the deadline expired, the service could not be reached (or answered with
// a non-success status), or the service answered success=false.
type Kind string

const (
	KindTimeout   Kind = "timeout"
	KindTransport Kind = "transport"
	KindRejected  Kind = "rejected"
)

// GenerationError is the classified failure surfaced to callers of
// Generate. None of the kinds are retried silently.
type GenerationError struct {
	Kind Kind
	// Status carries the HTTP status code for transport failures, 0 otherwise.
	Status int
	// Message holds the service-supplied error string for rejections, or a
	// short transport description.
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	switch e.Kind {
	case KindTimeout:
		return "protocol: generation deadline exceeded"
	case KindTransport:
		if e.Status != 0 {
			return fmt.Sprintf("protocol: generation service unavailable (status %d)", e.Status)
		}
		return fmt.Sprintf("protocol: generation service unreachable: %s", e.Message)
	case KindRejected:
		return fmt.Sprintf("protocol: generation rejected: %s", e.Message)
	default:
		return fmt.Sprintf("protocol: generation failed: %s", e.Message)
	}
}

func (e *GenerationError) Unwrap() error { return e.Err }

// AsGenerationError unwraps err into a *GenerationError if one is present.
func AsGenerationError(err error) (*GenerationError, bool) {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr, true
	}
	return nil, false
}

// IsTimeout reports whether err classifies as a deadline expiry.
func IsTimeout(err error) bool {
	genErr, ok := AsGenerationError(err)
	return ok && genErr.Kind == KindTimeout
}
