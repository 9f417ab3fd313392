package accounts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"checkin/internal/model"
	"checkin/internal/store"
)

// PostgresStore keeps profiles in the users table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store over db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, email, display_name, role, user_type, active, is_active, permissions,
	can_edit_attendance, can_view_attendance, can_manage_users, can_access_reports, can_register,
	created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var (
		u     model.User
		perms []byte
	)
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.Role, &u.UserType, &u.Active, &u.IsActive, &perms,
		&u.CanEditAttendance, &u.CanViewAttendance, &u.CanManageUsers, &u.CanAccessReports, &u.CanRegister,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, store.Classify(err)
	}
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &u.Permissions); err != nil {
			return model.User{}, fmt.Errorf("decode permissions of %s: %w", u.ID, err)
		}
	}
	return u, nil
}

// Get returns the user with id.
func (p *PostgresStore) Get(ctx context.Context, id string) (model.User, error) {
	return scanUser(p.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns the user with email, ignoring case.
func (p *PostgresStore) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return scanUser(p.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, NormalizeEmail(email)))
}

// Save upserts u by id.
func (p *PostgresStore) Save(ctx context.Context, u model.User) error {
	perms, err := json.Marshal(u.Permissions)
	if err != nil {
		return fmt.Errorf("encode permissions: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			role = EXCLUDED.role,
			user_type = EXCLUDED.user_type,
			active = EXCLUDED.active,
			is_active = EXCLUDED.is_active,
			permissions = EXCLUDED.permissions,
			can_edit_attendance = EXCLUDED.can_edit_attendance,
			can_view_attendance = EXCLUDED.can_view_attendance,
			can_manage_users = EXCLUDED.can_manage_users,
			can_access_reports = EXCLUDED.can_access_reports,
			can_register = EXCLUDED.can_register,
			updated_at = EXCLUDED.updated_at
	`, u.ID, u.Email, u.DisplayName, u.Role, u.UserType, u.Active, u.IsActive, perms,
		u.CanEditAttendance, u.CanViewAttendance, u.CanManageUsers, u.CanAccessReports, u.CanRegister,
		u.CreatedAt, u.UpdatedAt)
	return store.Classify(err)
}

// List returns every user ordered by email.
func (p *PostgresStore) List(ctx context.Context) ([]model.User, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY email`)
	if err != nil {
		return nil, store.Classify(err)
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, store.Classify(rows.Err())
}
