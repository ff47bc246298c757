package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidation is the caller-facing name for ErrInvalidInput.
	ErrValidation = ErrInvalidInput

	// ErrPermissionDenied indicates the caller does not own the target.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrDependencyFailure indicates the object store, document store,
	// vector index or language model failed.
	ErrDependencyFailure = errors.New("dependency failure")

	// ErrCorruptMetadata indicates a persisted fragment id blob could not be parsed.
	ErrCorruptMetadata = errors.New("corrupt metadata")

	// ErrConflict indicates a concurrent writer changed the active version first.
	ErrConflict = errors.New("conflict")

	// ErrRetrievalFailed is reported to chat callers when retrieval fails.
	// Internal details are logged, never returned.
	ErrRetrievalFailed = errors.New("retrieval failed")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnsupportedType indicates an unknown adapter type in configuration.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrSyncInProgress indicates a rebuild is already running.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Query routing falls back to general intent without it.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)

// Dependency wraps an infrastructure error so callers can match ErrDependencyFailure.
// A nil err returns nil.
func Dependency(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrDependencyFailure, err)
}
