package session

import (
	"context"
	"errors"
	"time"
)

// Service implements the high-level device-session operations for devicegate.
//
// It owns the admission state machine (register / already-registered /
// limit-reached), targeted revocation, the per-request validity gate, and
// session listing. All admission decisions for a subject are serialized
// through a keyed lock so the slot limit can never be exceeded by a
// read-then-write race.
type Service struct {
	cfg   Config
	store Store
	locks *subjectLocks
}

// NewService constructs a Service with the provided configuration and store.
func NewService(cfg Config, store Store) *Service {
	return &Service{cfg: cfg, store: store, locks: newSubjectLocks()}
}

// Register runs the admission state machine for a (subject, device) pair.
//
// The order is fixed and load-bearing:
//  1. Prune stale revoked rows (store-wide, not subject-scoped).
//  2. If a row for the pair exists, refresh its last_seen and return
//     OutcomeAlreadyRegistered. This holds even for revoked rows: a revoked
//     device is not reactivated and the limit is not re-checked.
//  3. Otherwise admit when the active count is below limit, or return
//     OutcomeLimitReached with the active sessions, oldest first, so the
//     caller can offer a revocation choice.
//
// limit < 0 selects the configured default. limit == 0 admits nothing new.
// The returned rows are populated only for OutcomeLimitReached.
func (s *Service) Register(ctx context.Context, subject, deviceID, deviceName string, limit int, now time.Time) (Outcome, []Row, error) {
	if limit < 0 {
		limit = s.cfg.DefaultLimit
	}

	// Store-wide sweep; runs outside the subject lock on purpose.
	if err := s.store.Prune(ctx, now, s.cfg.Retention); err != nil {
		return "", nil, err
	}

	unlock := s.locks.acquire(subject)
	defer unlock()

	row, err := s.store.Find(ctx, subject, deviceID)
	switch {
	case err == nil:
		if err := s.store.Touch(ctx, row.ID, now); err != nil {
			return "", nil, err
		}
		return OutcomeAlreadyRegistered, nil, nil
	case errors.Is(err, ErrSessionNotFound):
		// New device for this subject; fall through to the slot check.
	default:
		return "", nil, err
	}

	active, err := s.store.ActiveBySubject(ctx, subject)
	if err != nil {
		return "", nil, err
	}

	if len(active) < limit {
		if _, err := s.store.Insert(ctx, subject, deviceID, deviceName, now); err != nil {
			return "", nil, err
		}
		return OutcomeRegistered, nil, nil
	}

	return OutcomeLimitReached, active, nil
}

// ForceLogout revokes a specific session on behalf of its owning subject.
//
// Returns ErrSessionNotFound both when the ID does not exist and when it
// belongs to another subject; the caller must not be able to tell the
// difference.
func (s *Service) ForceLogout(ctx context.Context, subject string, id int64) error {
	if id <= 0 {
		return ErrInvalidSessionID
	}

	affected, err := s.store.Revoke(ctx, id, subject)
	if err != nil {
		return err
	}
	if !affected {
		return ErrSessionNotFound
	}
	return nil
}

// Check is the validity gate run before serving any privileged resource tied
// to a device. It is a pure read: unlike registration, it never refreshes
// last_seen. Only explicit registration counts as liveness.
func (s *Service) Check(ctx context.Context, subject, deviceID string) error {
	row, err := s.store.Find(ctx, subject, deviceID)
	if errors.Is(err, ErrSessionNotFound) {
		return ErrNotRegistered
	}
	if err != nil {
		return err
	}
	if row.Revoked {
		return ErrLoggedOutElsewhere
	}
	return nil
}

// List returns all of the subject's sessions, revoked included, oldest first.
func (s *Service) List(ctx context.Context, subject string) ([]Row, error) {
	return s.store.AllBySubject(ctx, subject)
}
