package storage

import "errors"

// Storage error constants
var (
	// ErrNotFound is a generic "not found" error
	ErrNotFound = errors.New("not found")

	// ErrDatabaseClosed is returned when attempting to use a closed database connection
	ErrDatabaseClosed = errors.New("database is closed")

	// ErrInvalidKey is returned for empty settings keys
	ErrInvalidKey = errors.New("invalid settings key")

	// ErrUnknownBackend is returned when configuration names a settings backend
	// this build does not provide
	ErrUnknownBackend = errors.New("unknown settings backend")
)
