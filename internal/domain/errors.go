package domain

import "errors"

var (
	// ErrInput marks a malformed dataset or an empty chunk set. Nothing is
	// written when it is returned.
	ErrInput = errors.New("invalid input")

	// ErrEmbedding marks a single text that could not be embedded.
	ErrEmbedding = errors.New("embedding failed")

	// ErrStoreUnavailable marks any failed call to the vector store.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrIndexCreation marks a payload index that could not be created.
	ErrIndexCreation = errors.New("index creation failed")

	ErrCollectionNotFound = errors.New("collection not found")
	ErrDimensionMismatch  = errors.New("vector dimension mismatch")
)
