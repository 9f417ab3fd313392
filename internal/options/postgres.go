package options

import (
	"context"
	"database/sql"
	"fmt"

	"checkin/internal/store"
)

// PostgresSource reads option sets from the form_options table.
type PostgresSource struct {
	db *sql.DB
}

// NewPostgresSource creates a source backed by db.
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// Current loads every configured list. Fields with no rows fall back to Default.
func (p *PostgresSource) Current(ctx context.Context) (Set, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT field, value FROM form_options
		ORDER BY field, position, value
	`)
	if err != nil {
		return Set{}, fmt.Errorf("query form options: %w", store.Classify(err))
	}
	defer rows.Close()

	lists := map[string][]string{}
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return Set{}, store.Classify(err)
		}
		lists[field] = append(lists[field], value)
	}
	if err := rows.Err(); err != nil {
		return Set{}, store.Classify(err)
	}

	var set Set
	for field, values := range lists {
		if !IsField(field) {
			continue
		}
		if set, err = set.With(field, values); err != nil {
			return Set{}, err
		}
	}
	return set.FillMissing(Default()), nil
}

// Replace swaps the list stored for field in a single transaction.
func (p *PostgresSource) Replace(ctx context.Context, field string, values []string) error {
	if !IsField(field) {
		return fmt.Errorf("unknown option field %q", field)
	}
	if err := p.replace(ctx, field, values); err != nil {
		return fmt.Errorf("replace %s options: %w", field, store.Classify(err))
	}
	return nil
}

func (p *PostgresSource) replace(ctx context.Context, field string, values []string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM form_options WHERE field = $1`, field); err != nil {
		return err
	}
	for i, v := range values {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO form_options (field, value, position) VALUES ($1, $2, $3)
			ON CONFLICT (field, value) DO NOTHING
		`, field, v, i); err != nil {
			return err
		}
	}
	return tx.Commit()
}
