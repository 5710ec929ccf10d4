package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore implements Store on a local SQLite file via database/sql.
// Timestamps are stored as Unix seconds, matching the wire format.
//
// SQLite serializes writers per connection; combined with the Service's
// per-subject lock this is sufficient for the single-process deployments
// this store targets.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	subject TEXT NOT NULL,
	device_id TEXT NOT NULL,
	device_name TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	last_seen INTEGER NOT NULL,
	revoked INTEGER NOT NULL DEFAULT 0,
	UNIQUE (subject, device_id)
);
CREATE INDEX IF NOT EXISTS sessions_subject_active
	ON sessions (subject, revoked, created_at);
`

// NewSQLiteStore opens (creating if needed) the SQLite database at path and
// ensures the schema exists. AUTOINCREMENT guarantees IDs are never reused
// even after pruning.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// database/sql pooling breaks SQLite write locking guarantees; one
	// connection keeps writes serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Prune deletes revoked rows older than the retention window, store-wide.
func (s *SQLiteStore) Prune(ctx context.Context, now time.Time, retention time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE revoked = 1 AND last_seen < ?
	`, now.Add(-retention).Unix())
	return err
}

// Find loads the row for a (subject, device) pair.
func (s *SQLiteStore) Find(ctx context.Context, subject, deviceID string) (Row, error) {
	r, err := scanRow(s.db.QueryRowContext(ctx, `
		SELECT id, subject, device_id, device_name, created_at, last_seen, revoked
		FROM sessions
		WHERE subject = ? AND device_id = ?
	`, subject, deviceID))
	if errors.Is(err, sql.ErrNoRows) {
		return Row{}, ErrSessionNotFound
	}
	return r, err
}

// Touch updates last_seen for a session.
func (s *SQLiteStore) Touch(ctx context.Context, id int64, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET last_seen = ? WHERE id = ?
	`, now.Unix(), id)
	return err
}

// ActiveBySubject returns the subject's non-revoked rows, oldest first.
func (s *SQLiteStore) ActiveBySubject(ctx context.Context, subject string) ([]Row, error) {
	return s.list(ctx, subject, `
		SELECT id, subject, device_id, device_name, created_at, last_seen, revoked
		FROM sessions
		WHERE subject = ? AND revoked = 0
		ORDER BY created_at ASC, id ASC
	`)
}

// AllBySubject returns all of the subject's rows, oldest first.
func (s *SQLiteStore) AllBySubject(ctx context.Context, subject string) ([]Row, error) {
	return s.list(ctx, subject, `
		SELECT id, subject, device_id, device_name, created_at, last_seen, revoked
		FROM sessions
		WHERE subject = ?
		ORDER BY created_at ASC, id ASC
	`)
}

func (s *SQLiteStore) list(ctx context.Context, subject, query string) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, query, subject)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Insert creates a new non-revoked row and returns it with its assigned id.
func (s *SQLiteStore) Insert(ctx context.Context, subject, deviceID, deviceName string, now time.Time) (Row, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (subject, device_id, device_name, created_at, last_seen, revoked)
		VALUES (?, ?, ?, ?, ?, 0)
	`, subject, deviceID, deviceName, now.Unix(), now.Unix())
	if err != nil {
		return Row{}, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Row{}, err
	}

	return Row{
		ID:         id,
		Subject:    subject,
		DeviceID:   deviceID,
		DeviceName: deviceName,
		CreatedAt:  time.Unix(now.Unix(), 0).UTC(),
		LastSeen:   time.Unix(now.Unix(), 0).UTC(),
	}, nil
}

// Revoke marks a session revoked if owned by subject (idempotent).
func (s *SQLiteStore) Revoke(ctx context.Context, id int64, subject string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET revoked = 1 WHERE id = ? AND subject = ?
	`, id, subject)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(sc rowScanner) (Row, error) {
	var (
		r        Row
		created  int64
		lastSeen int64
		revoked  int64
	)
	if err := sc.Scan(&r.ID, &r.Subject, &r.DeviceID, &r.DeviceName, &created, &lastSeen, &revoked); err != nil {
		return Row{}, err
	}
	r.CreatedAt = time.Unix(created, 0).UTC()
	r.LastSeen = time.Unix(lastSeen, 0).UTC()
	r.Revoked = revoked != 0
	return r, nil
}
