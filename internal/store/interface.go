package store

import "database/sql"

// StoreState represents the initialization state of a store file.
type StoreState int

const (
	StateMissing         StoreState = iota // File doesn't exist
	StateUninitialized                     // File exists but no schema
	StateVersionMismatch                   // Schema exists but version outside the supported range
	StateReady                             // Initialized and compatible
)

func (s StoreState) String() string {
	switch s {
	case StateMissing:
		return "missing"
	case StateUninitialized:
		return "uninitialized"
	case StateVersionMismatch:
		return "incompatible"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

// Store defines the single-connection store contract.
// Implementations are not safe for concurrent use: exactly one owner drives a Store.
type Store interface {
	// Open opens the store connection
	Open() error

	// Close closes the store connection. Closing a closed store is a no-op.
	Close() error

	// IsOpen reports whether a connection is held
	IsOpen() bool

	// Path returns the backing file
	Path() string

	// ReadOnly reports whether writes are rejected
	ReadOnly() bool

	// IsFileModified reports whether the file changed on disk since it was opened
	IsFileModified() bool

	// DB returns the underlying connection, or nil when closed
	DB() *sql.DB
}
