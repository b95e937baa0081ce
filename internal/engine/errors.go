package engine

import (
	"fmt"
	"time"
)

// ErrorKind is the machine-readable failure taxonomy. The HTTP layer maps
// kinds to status codes; the pipeline itself never branches on messages.
type ErrorKind string

const (
	ErrValidation      ErrorKind = "validation"        // malformed input, caller's fault
	ErrRateLimited     ErrorKind = "rate_limited"      // back off and retry after the hint
	ErrExtraction      ErrorKind = "extraction_failed" // upstream content unavailable or unusable
	ErrUpstreamTimeout ErrorKind = "upstream_timeout"  // bounded wait exceeded, no automatic retry
	ErrMisconfigured   ErrorKind = "misconfigured"     // required credential absent
	ErrUnexpected      ErrorKind = "unexpected"
)

// Error is the only error type crossing component boundaries. Extraction
// failures are captured as data (ExtractionResult.Err), not raised.
type Error struct {
	Kind       ErrorKind
	Message    string
	RetryAfter time.Duration // set for rate_limited
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Errorf builds an Error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
