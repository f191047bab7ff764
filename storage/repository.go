// Package storage provides the record storage abstraction used by the
// reference backend and the CLI credential store.
package storage

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
)

// Repository stores opaque records addressed by namespace, record type and
// record ID. Implementations must be safe for concurrent use.
type Repository interface {
	Put(namespace, recordType, recordID string, data []byte) error
	Get(namespace, recordType, recordID string) ([]byte, error)
	// List returns the record IDs of recordType in namespace. The order is
	// unspecified.
	List(namespace, recordType string) ([]string, error)
	Delete(namespace, recordType, recordID string) error
	// NextSequence returns the next value of a per-namespace counter,
	// starting at 1.
	NextSequence(namespace string) (uint64, error)
	Close() error
}
