package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"checkin/internal/model"
)

// UnknownEditor stamps writes whose caller did not identify itself.
const UnknownEditor = "unknown"

// UpdateResult is returned by a successful update.
type UpdateResult struct {
	Success        bool         `json:"success"`
	NewUpdateCount int          `json:"newUpdateCount"`
	Record         model.Record `json:"record"`
}

// Updater applies record mutations under the optimistic-concurrency contract.
// It does not retry; StoreUnavailable is left to the caller.
type Updater struct {
	store RecordStore
	now   func() time.Time
}

// NewUpdater creates an updater. A nil now uses time.Now.
func NewUpdater(store RecordStore, now func() time.Time) *Updater {
	if now == nil {
		now = time.Now
	}
	return &Updater{store: store, now: now}
}

// Create stores a first registration with updateCount 1.
func (u *Updater) Create(ctx context.Context, rec model.Record, editor string) (model.Record, error) {
	editor = editorOrUnknown(editor)
	now := u.now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = model.StatusPresent
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now
	}
	if rec.ScanMethod == "" {
		rec.ScanMethod = model.ScanMethodForm
	}
	rec.CreatedAt = now
	rec.CreatedBy = editor
	rec.UpdateCount = 1
	rec.LastUpdatedBy = editor
	rec.LastUpdated = now

	out, err := u.store.Insert(ctx, rec)
	if err != nil {
		return model.Record{}, fmt.Errorf("create record: %w", err)
	}
	return out, nil
}

// Update applies patch to recordID. With expected set the write fails with
// ErrConflict if the stored update count differs; without it the write is
// unconditional.
func (u *Updater) Update(ctx context.Context, recordID string, patch Patch, editor string, expected *int) (UpdateResult, error) {
	if recordID == "" {
		return UpdateResult{}, fmt.Errorf("update: record id required: %w", ErrNotFound)
	}
	stamp := Stamp{Editor: editorOrUnknown(editor), At: u.now().UTC()}
	rec, err := u.store.Write(ctx, recordID, patch, stamp, expected)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("update record %s: %w", recordID, err)
	}
	return UpdateResult{Success: true, NewUpdateCount: rec.UpdateCount, Record: rec}, nil
}

func editorOrUnknown(editor string) string {
	if editor == "" {
		return UnknownEditor
	}
	return editor
}

// Outcome labels a store error for metrics and audit.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStoreUnavailable):
		return "unavailable"
	}
	return "error"
}
