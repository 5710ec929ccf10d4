package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (devicegate.sessions).
//
// The table carries a unique index on (subject, device_id) as a storage-level
// backstop for the check-then-insert sequence; the decision-level
// serialization lives in Service.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store.
// The pool's lifecycle is owned by the caller; Close is a no-op.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Close is a no-op; the pool is owned by the app.
func (s *PostgresStore) Close() error { return nil }

// Prune deletes revoked rows older than the retention window, store-wide.
func (s *PostgresStore) Prune(ctx context.Context, now time.Time, retention time.Duration) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM devicegate.sessions
		WHERE revoked AND last_seen < $1
	`, now.Add(-retention))
	return err
}

// Find loads the row for a (subject, device) pair.
func (s *PostgresStore) Find(ctx context.Context, subject, deviceID string) (Row, error) {
	var row Row

	err := s.pool.QueryRow(ctx, `
		SELECT id, subject, device_id, device_name, created_at, last_seen, revoked
		FROM devicegate.sessions
		WHERE subject = $1 AND device_id = $2
	`, subject, deviceID).Scan(
		&row.ID,
		&row.Subject,
		&row.DeviceID,
		&row.DeviceName,
		&row.CreatedAt,
		&row.LastSeen,
		&row.Revoked,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, ErrSessionNotFound
	}
	if err != nil {
		return Row{}, err
	}

	return row, nil
}

// Touch updates last_seen for a session.
func (s *PostgresStore) Touch(ctx context.Context, id int64, now time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE devicegate.sessions
		SET last_seen = $2
		WHERE id = $1
	`, id, now)
	return err
}

// ActiveBySubject returns the subject's non-revoked rows, oldest first.
func (s *PostgresStore) ActiveBySubject(ctx context.Context, subject string) ([]Row, error) {
	return s.list(ctx, subject, `
		SELECT id, subject, device_id, device_name, created_at, last_seen, revoked
		FROM devicegate.sessions
		WHERE subject = $1 AND NOT revoked
		ORDER BY created_at ASC, id ASC
	`)
}

// AllBySubject returns all of the subject's rows, oldest first.
func (s *PostgresStore) AllBySubject(ctx context.Context, subject string) ([]Row, error) {
	return s.list(ctx, subject, `
		SELECT id, subject, device_id, device_name, created_at, last_seen, revoked
		FROM devicegate.sessions
		WHERE subject = $1
		ORDER BY created_at ASC, id ASC
	`)
}

func (s *PostgresStore) list(ctx context.Context, subject, query string) ([]Row, error) {
	rows, err := s.pool.Query(ctx, query, subject)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Subject, &r.DeviceID, &r.DeviceName, &r.CreatedAt, &r.LastSeen, &r.Revoked); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Insert creates a new non-revoked row and returns it with its BIGSERIAL id.
func (s *PostgresStore) Insert(ctx context.Context, subject, deviceID, deviceName string, now time.Time) (Row, error) {
	row := Row{
		Subject:    subject,
		DeviceID:   deviceID,
		DeviceName: deviceName,
		CreatedAt:  now,
		LastSeen:   now,
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO devicegate.sessions (subject, device_id, device_name, created_at, last_seen, revoked)
		VALUES ($1, $2, $3, $4, $4, FALSE)
		RETURNING id
	`, subject, deviceID, deviceName, now).Scan(&row.ID)
	if err != nil {
		return Row{}, err
	}

	return row, nil
}

// Revoke marks a session revoked if owned by subject (idempotent).
func (s *PostgresStore) Revoke(ctx context.Context, id int64, subject string) (bool, error) {
	ct, err := s.pool.Exec(ctx, `
		UPDATE devicegate.sessions
		SET revoked = TRUE
		WHERE id = $1 AND subject = $2
	`, id, subject)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}
