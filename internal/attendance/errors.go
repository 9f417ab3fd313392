package attendance

import (
	"database/sql"
	"errors"

	"checkin/internal/store"
)

// Store failures. Stores return these wrapped; callers compare with errors.Is.
var (
	ErrNotFound         = errors.New("record not found")
	ErrConflict         = errors.New("record was modified by another editor")
	ErrStoreUnavailable = store.ErrUnavailable
)

// IsRetryable reports whether the caller may retry err with backoff.
// NotFound and Conflict are never retried automatically.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// classify maps driver and transport failures onto the store sentinels.
func classify(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return store.Classify(err)
}
