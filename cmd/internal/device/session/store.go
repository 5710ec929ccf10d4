package session

import (
	"context"
	"time"
)

// Row mirrors the devicegate.sessions row used by the session subsystem.
//
// IDs are assigned by the store, strictly increasing, and never reused:
// a pruned row's ID stays burned.
type Row struct {
	ID         int64
	Subject    string
	DeviceID   string
	DeviceName string
	CreatedAt  time.Time
	LastSeen   time.Time
	Revoked    bool
}

// Outcome is the result of an admission decision.
type Outcome string

const (
	// OutcomeRegistered means a new session row was created for the device.
	OutcomeRegistered Outcome = "registered"
	// OutcomeAlreadyRegistered means a row for the (subject, device) pair
	// already existed; only its last_seen was refreshed.
	OutcomeAlreadyRegistered Outcome = "already_registered"
	// OutcomeLimitReached means the subject is at its slot limit and the
	// device was not admitted.
	OutcomeLimitReached Outcome = "limit_reached"
)

// Store abstracts persistence for device-session state.
//
// Listing order is load-bearing: ActiveBySubject and AllBySubject must return
// rows ascending by created_at (ties broken by id). The oldest session is
// shown first when a limit is hit, which is also the natural eviction
// candidate order.
//
// The store only persists and retrieves rows; admission decisions are owned
// by Service, which serializes them per subject.
type Store interface {
	// Prune deletes all revoked rows, store-wide, whose last_seen is older
	// than the retention window.
	Prune(ctx context.Context, now time.Time, retention time.Duration) error

	// Find loads the row for a (subject, device) pair.
	// Returns ErrSessionNotFound when no row exists.
	Find(ctx context.Context, subject, deviceID string) (Row, error)

	// Touch updates last_seen for a session.
	Touch(ctx context.Context, id int64, now time.Time) error

	// ActiveBySubject returns the subject's non-revoked rows, oldest first.
	ActiveBySubject(ctx context.Context, subject string) ([]Row, error)

	// Insert creates a new non-revoked row with created_at = last_seen = now
	// and returns it with its assigned ID.
	Insert(ctx context.Context, subject, deviceID, deviceName string, now time.Time) (Row, error)

	// Revoke marks a session revoked if it exists AND belongs to subject.
	// Reports whether a row was affected; revoking an already revoked own
	// row still counts as affected (the operation is idempotent).
	Revoke(ctx context.Context, id int64, subject string) (bool, error)

	// AllBySubject returns all of the subject's rows, revoked included,
	// oldest first.
	AllBySubject(ctx context.Context, subject string) ([]Row, error)

	// Close releases store resources. Pool-backed stores may treat this as a
	// no-op when the pool is owned elsewhere.
	Close() error
}
