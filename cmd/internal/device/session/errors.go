package session

import "errors"

var (
	// ErrSessionNotFound is returned when a session row does not exist or is
	// not owned by the calling subject. The two causes are deliberately
	// indistinguishable so that session IDs of other users cannot be probed.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidSessionID is returned when a revocation targets an ID that
	// cannot name any session (zero or negative).
	ErrInvalidSessionID = errors.New("invalid session id")

	// ErrNotRegistered is returned by the validity gate when no session row
	// exists for the (subject, device) pair.
	ErrNotRegistered = errors.New("device not registered")

	// ErrLoggedOutElsewhere is returned by the validity gate when the session
	// row exists but has been revoked from another device.
	ErrLoggedOutElsewhere = errors.New("logged out by another device")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
