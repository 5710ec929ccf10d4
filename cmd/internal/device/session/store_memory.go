package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a dev/test fallback when no database is configured.
// It implements the full Store contract, including monotonic ID assignment
// that survives pruning (IDs are never reused).
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]Row
}

// NewMemoryStore constructs an in-memory Store implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[int64]Row)}
}

// Close closes the store (noop for in-memory).
func (s *MemoryStore) Close() error { return nil }

// Prune deletes revoked rows whose last_seen is older than the retention window.
func (s *MemoryStore) Prune(ctx context.Context, now time.Time, retention time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cut := now.Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, r := range s.rows {
		if r.Revoked && r.LastSeen.Before(cut) {
			delete(s.rows, id)
		}
	}
	return nil
}

// Find loads the row for a (subject, device) pair.
func (s *MemoryStore) Find(ctx context.Context, subject, deviceID string) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rows {
		if r.Subject == subject && r.DeviceID == deviceID {
			return r, nil
		}
	}
	return Row{}, ErrSessionNotFound
}

// Touch updates last_seen for a session.
func (s *MemoryStore) Touch(ctx context.Context, id int64, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok {
		return ErrSessionNotFound
	}
	r.LastSeen = now
	s.rows[id] = r
	return nil
}

// ActiveBySubject returns the subject's non-revoked rows, oldest first.
func (s *MemoryStore) ActiveBySubject(ctx context.Context, subject string) ([]Row, error) {
	return s.list(ctx, subject, false)
}

// AllBySubject returns all of the subject's rows, oldest first.
func (s *MemoryStore) AllBySubject(ctx context.Context, subject string) ([]Row, error) {
	return s.list(ctx, subject, true)
}

func (s *MemoryStore) list(ctx context.Context, subject string, includeRevoked bool) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	var out []Row
	for _, r := range s.rows {
		if r.Subject != subject {
			continue
		}
		if !includeRevoked && r.Revoked {
			continue
		}
		out = append(out, r)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Insert creates a new non-revoked row with the next monotonic ID.
func (s *MemoryStore) Insert(ctx context.Context, subject, deviceID, deviceName string, now time.Time) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	r := Row{
		ID:         s.nextID,
		Subject:    subject,
		DeviceID:   deviceID,
		DeviceName: deviceName,
		CreatedAt:  now,
		LastSeen:   now,
	}
	s.rows[r.ID] = r
	return r, nil
}

// Revoke marks a session revoked if owned by subject; reports whether a row
// was affected.
func (s *MemoryStore) Revoke(ctx context.Context, id int64, subject string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok || r.Subject != subject {
		return false, nil
	}
	r.Revoked = true
	s.rows[id] = r
	return true, nil
}
