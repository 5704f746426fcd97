package domain

import "errors"

var (
	// ErrInvalidBatch is returned when the input batch is malformed
	// (duplicate URLs, unknown roles, empty identifiers)
	ErrInvalidBatch = errors.New("invalid pairing batch")

	// ErrAssistFailure is returned when the model-assist request fails
	ErrAssistFailure = errors.New("model-assist request failed")

	// ErrPartitionViolation indicates an internal defect: an input URL
	// was duplicated across groups or dropped from the output entirely
	ErrPartitionViolation = errors.New("output does not partition input URLs")

	// ErrRateLimited is returned when the assist rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCacheMiss is returned when a result is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)
