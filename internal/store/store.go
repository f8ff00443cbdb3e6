// Package store persists execution log documents keyed by workflow ID.
package store

import "context"

// LogStore is the storage collaborator used by the executor for log
// persistence. Implementations must make each Write atomic from a reader's
// perspective: a crash mid-write must never leave a document that parses but
// represents a state between two valid states.
//
// All implementations must be safe for concurrent use across distinct IDs;
// serializing access to a single ID is the caller's responsibility.
type LogStore interface {
	// Write persists the document for id, replacing any previous version.
	Write(ctx context.Context, id string, doc []byte) error

	// Read returns the document for id, or a NOT_FOUND ConveyorError.
	Read(ctx context.Context, id string) ([]byte, error)

	// Delete removes the document for id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of all persisted documents.
	List(ctx context.Context) ([]string, error)

	// Close releases underlying resources.
	Close() error
}
