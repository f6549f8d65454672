package jobs

import "errors"

// Lifecycle error types
var (
	ErrJobNotFound      = errors.New("job not found")
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrEmptyDocument    = errors.New("document is empty")
)

// Error kind labels carried on failed job snapshots.
const (
	errKindUnreadable = "UnreadableDocument"
	errKindEncoding   = "EncodingError"
	errKindInternal   = "Internal"
)
