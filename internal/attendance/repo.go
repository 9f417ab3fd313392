package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"checkin/internal/model"
)

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const recordColumns = `id, full_name, national_id, birthday, pastor_name, reclassification, church_position,
	region, city, shift, status, absent_reason, scan_method, occurred_at, created_at, created_by,
	update_count, last_updated_by, last_updated`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (model.Record, error) {
	var (
		rec         model.Record
		occurredAt  sql.NullTime
		lastUpdated sql.NullTime
	)
	err := row.Scan(&rec.ID, &rec.FullName, &rec.NationalID, &rec.Birthday, &rec.PastorName,
		&rec.Reclassification, &rec.ChurchPosition, &rec.Region, &rec.City, &rec.Shift, &rec.Status,
		&rec.AbsentReason, &rec.ScanMethod, &occurredAt, &rec.CreatedAt, &rec.CreatedBy,
		&rec.UpdateCount, &rec.LastUpdatedBy, &lastUpdated)
	if err != nil {
		return model.Record{}, err
	}
	if occurredAt.Valid {
		rec.Timestamp = occurredAt.Time
	}
	if lastUpdated.Valid {
		rec.LastUpdated = lastUpdated.Time
	}
	return rec, nil
}

// Get returns a single record by id.
func (r *Repository) Get(ctx context.Context, id string) (model.Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM attendance_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		return model.Record{}, classify(err)
	}
	return rec, nil
}

// FindByNationalID returns every record sharing the identifier.
func (r *Repository) FindByNationalID(ctx context.Context, nationalID string) ([]model.Record, error) {
	return r.query(ctx, `SELECT `+recordColumns+` FROM attendance_records
		WHERE national_id = $1 ORDER BY created_at, id`, nationalID)
}

// FindByNameKey returns every record whose normalized full name equals nameKey.
func (r *Repository) FindByNameKey(ctx context.Context, nameKey string) ([]model.Record, error) {
	return r.query(ctx, `SELECT `+recordColumns+` FROM attendance_records
		WHERE full_name_key = $1 ORDER BY created_at, id`, nameKey)
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]model.Record, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var res []model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, classify(err)
		}
		res = append(res, rec)
	}
	return res, classify(rows.Err())
}

// Insert writes a new record.
func (r *Repository) Insert(ctx context.Context, rec model.Record) (model.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, full_name, full_name_key, national_id, birthday, pastor_name,
			reclassification, church_position, region, city, shift, status, absent_reason, scan_method,
			occurred_at, created_at, created_by, update_count, last_updated_by, last_updated)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`, rec.ID, rec.FullName, NameKey(rec.FullName), rec.NationalID, rec.Birthday, rec.PastorName,
		rec.Reclassification, rec.ChurchPosition, rec.Region, rec.City, rec.Shift, rec.Status,
		rec.AbsentReason, rec.ScanMethod, nullTime(rec.Timestamp), rec.CreatedAt, rec.CreatedBy,
		rec.UpdateCount, rec.LastUpdatedBy, nullTime(rec.LastUpdated))
	if err != nil {
		return model.Record{}, classify(err)
	}
	return rec, nil
}

// Write applies patch in a single conditional UPDATE. The precondition and the
// increment are evaluated by Postgres, so concurrent writers cannot both pass.
func (r *Repository) Write(ctx context.Context, id string, patch Patch, stamp Stamp, expected *int) (model.Record, error) {
	var nameKey *string
	if patch.FullName != nil {
		k := NameKey(*patch.FullName)
		nameKey = &k
	}
	row := r.db.QueryRowContext(ctx, `
		UPDATE attendance_records SET
			full_name        = COALESCE($2, full_name),
			full_name_key    = COALESCE($3, full_name_key),
			national_id      = COALESCE($18, national_id),
			birthday         = COALESCE($4, birthday),
			pastor_name      = COALESCE($5, pastor_name),
			reclassification = COALESCE($6, reclassification),
			church_position  = COALESCE($7, church_position),
			region           = COALESCE($8, region),
			city             = COALESCE($9, city),
			shift            = COALESCE($10, shift),
			status           = COALESCE($11, status),
			absent_reason    = COALESCE($12, absent_reason),
			scan_method      = COALESCE($13, scan_method),
			occurred_at      = COALESCE($14, occurred_at),
			update_count     = update_count + 1,
			last_updated_by  = $15,
			last_updated     = $16
		WHERE id = $1 AND ($17::int IS NULL OR update_count = $17::int)
		RETURNING `+recordColumns,
		id, patch.FullName, nameKey, patch.Birthday, patch.PastorName, patch.Reclassification,
		patch.ChurchPosition, patch.Region, patch.City, patch.Shift, patch.Status, patch.AbsentReason,
		patch.ScanMethod, patch.Timestamp, stamp.Editor, stamp.At, expected, patch.NationalID)
	rec, err := scanRecord(row)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.Record{}, classify(err)
	}

	// Zero rows: either the record is gone or the precondition failed.
	var stored int
	if err := r.db.QueryRowContext(ctx, `SELECT update_count FROM attendance_records WHERE id = $1`, id).Scan(&stored); err != nil {
		return model.Record{}, classify(err)
	}
	return model.Record{}, fmt.Errorf("expected update count %d, stored %d: %w", deref(expected), stored, ErrConflict)
}

// Scan streams every record in creation order.
func (r *Repository) Scan(ctx context.Context, fn func(model.Record) error) error {
	rows, err := r.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM attendance_records ORDER BY created_at, id`)
	if err != nil {
		return classify(err)
	}
	defer rows.Close()
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return classify(err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return classify(rows.Err())
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func deref(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}
