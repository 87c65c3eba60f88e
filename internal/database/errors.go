package database

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNoContent means the source bytes for a document were missing,
	// so no fingerprint could be computed. The upsert touches nothing.
	ErrNoContent = errors.New("document has no source content to fingerprint")

	// ErrConflict means concurrent writes kept the database locked past
	// the bounded retries of an upsert.
	ErrConflict = errors.New("store conflict: database stayed locked after retries")

	// ErrUnavailable means the underlying database could not be reached
	// or opened. Fatal for the current batch.
	ErrUnavailable = errors.New("store unavailable")

	// ErrNotFound means no record exists with the requested id.
	ErrNotFound = errors.New("property not found")
)

// isLocked reports whether err is a transient sqlite lock, the only
// condition an upsert retries.
func isLocked(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
