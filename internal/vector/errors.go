package vector

import "errors"

var (
	// ErrDimensionMismatch: a vector's length differs from the collection's
	// declared dimension. Fatal for that unit; never retried.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrCollectionNotFound: the named collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionNotLoaded: search was attempted before Load in this
	// process. Callers are expected to Load defensively before searching.
	ErrCollectionNotLoaded = errors.New("collection not loaded")

	// ErrUnavailable: transport-level failure talking to the vector store.
	// Retryable, unlike the schema errors above.
	ErrUnavailable = errors.New("vector store unavailable")
)
