package compression

import (
	"errors"
	"fmt"
)

// Engine error types
var (
	ErrInvalidTarget   = errors.New("target size must be positive")
	ErrUnknownMode     = errors.New("unknown tolerance mode")
	ErrAllImagesFailed = errors.New("no image object could be re-encoded")
)

// EncodingError reports a transform that failed for a whole pass. Per-
// object failures are recorded as skips on the Candidate instead; an
// EncodingError surfaces only when a required transform failed for every
// object it applies to.
type EncodingError struct {
	Transform string
	Err       error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding failed during %s: %v", e.Transform, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// NewEncodingError creates a new encoding error
func NewEncodingError(transform string, err error) *EncodingError {
	return &EncodingError{Transform: transform, Err: err}
}
