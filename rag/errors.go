package rag

import "errors"

var (
	// ErrProviderUnavailable is returned when the embedding provider fails or times out.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
	// ErrDimensionMismatch is returned when vectors of different lengths meet.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrInvalidVector is returned for empty vectors or vectors holding NaN or Inf.
	ErrInvalidVector = errors.New("invalid embedding vector")
	// ErrInvalidThreshold is returned for thresholds outside [-1, 1].
	ErrInvalidThreshold = errors.New("threshold must be within [-1, 1]")
	// ErrDuplicateID is returned when two entries share an id.
	ErrDuplicateID = errors.New("duplicate entry id")
	// ErrEmptyQuery is returned for blank queries.
	ErrEmptyQuery = errors.New("query is required")
)
