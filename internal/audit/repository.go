package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"checkin/internal/store"
)

// Repository appends events to the audit_events table.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Append stores evt. Replayed events with a known id are ignored.
func (r *Repository) Append(ctx context.Context, evt Event) error {
	details, err := json.Marshal(evt.Details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, type, actor, record_id, details, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, evt.ID, evt.Type, evt.Actor, evt.RecordID, details, evt.At)
	return store.Classify(err)
}

// ForRecord lists the events attached to recordID, oldest first.
func (r *Repository) ForRecord(ctx context.Context, recordID string) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, actor, record_id, details, occurred_at
		FROM audit_events WHERE record_id = $1 ORDER BY occurred_at, id
	`, recordID)
	if err != nil {
		return nil, store.Classify(err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			evt     Event
			details []byte
		)
		if err := rows.Scan(&evt.ID, &evt.Type, &evt.Actor, &evt.RecordID, &details, &evt.At); err != nil {
			return nil, store.Classify(err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &evt.Details); err != nil {
				return nil, fmt.Errorf("decode details of %s: %w", evt.ID, err)
			}
		}
		out = append(out, evt)
	}
	return out, store.Classify(rows.Err())
}
