package connection

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, company_id, name, phone, type, status, last_connected, created_at, updated_at
		FROM connections
		WHERE id = $1
	`, id)

	var rec Record
	var phone sql.NullString
	var lastConnected sql.NullTime
	if err := row.Scan(
		&rec.ID,
		&rec.CompanyID,
		&rec.Name,
		&phone,
		&rec.Type,
		&rec.Status,
		&lastConnected,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if phone.Valid {
		rec.Phone = phone.String
	}
	if lastConnected.Valid {
		t := lastConnected.Time
		rec.LastConnected = &t
	}
	return &rec, nil
}

func (r *PostgresRepo) ListConnected(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, company_id, name, phone, type, status, last_connected, created_at, updated_at
		FROM connections
		WHERE status = 'connected'
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var phone sql.NullString
		var lastConnected sql.NullTime
		if err := rows.Scan(
			&rec.ID,
			&rec.CompanyID,
			&rec.Name,
			&phone,
			&rec.Type,
			&rec.Status,
			&lastConnected,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if phone.Valid {
			rec.Phone = phone.String
		}
		if lastConnected.Valid {
			t := lastConnected.Time
			rec.LastConnected = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) MirrorStatus(ctx context.Context, id, status, phone string) error {
	var lastConnected *time.Time
	if status == StatusConnected {
		now := time.Now().UTC()
		lastConnected = &now
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE connections
		SET status = $2,
		    phone = COALESCE(NULLIF($3, ''), phone),
		    last_connected = COALESCE($4, last_connected),
		    updated_at = now()
		WHERE id = $1
	`, id, status, phone, lastConnected)
	return err
}
