// Package storage provides artifact sinks: durable stores for finished
// document artifacts that hand back a caller-retrievable locator.
package storage

import (
	"context"
	"errors"
)

// StoreRequest contains the parameters for storing an artifact
type StoreRequest struct {
	// Key is the unique object key (the generated artifact filename)
	Key string
	// Data is the raw artifact content
	Data []byte
	// ContentType of the artifact
	ContentType string
}

// StoreResult contains the result of storing an artifact
type StoreResult struct {
	// Key is the full storage key the artifact landed under
	Key string
	// Locator is the caller-retrievable URL for the artifact
	Locator string
	// Size is the stored size in bytes
	Size int64
}

// ArtifactSink stores finished artifacts. A sink never retries internally;
// whole-pipeline retry policy lives with the caller.
type ArtifactSink interface {
	// Store writes the artifact under a unique key and returns its locator
	Store(ctx context.Context, req *StoreRequest) (*StoreResult, error)
	// Ready reports whether the backing store is reachable and writable
	Ready(ctx context.Context) error
}

var (
	// ErrEmptyKey is returned when a store request has no key
	ErrEmptyKey = errors.New("storage: object key is required")
	// ErrEmptyData is returned when a store request has no payload
	ErrEmptyData = errors.New("storage: object data is required")
	// ErrUnsafeKey is returned when a key would escape the storage root
	ErrUnsafeKey = errors.New("storage: object key contains unsafe path elements")
)

// validateRequest applies the checks shared by every sink
func validateRequest(req *StoreRequest) error {
	if req == nil || req.Key == "" {
		return ErrEmptyKey
	}
	if len(req.Data) == 0 {
		return ErrEmptyData
	}
	return nil
}
