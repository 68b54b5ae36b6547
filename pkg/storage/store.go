package storage

import "context"

// DocumentStore persists whole JSON documents keyed by name. The documents
// are always read and written as a unit; an append at the domain layer is
// a full-document rewrite here.
type DocumentStore interface {
	// Load returns the raw document, or (nil, nil) when it does not exist.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save replaces the document under key.
	Save(ctx context.Context, key string, doc []byte) error

	// Close releases resources
	Close() error
}
