// Package session implements devicegate's device-slot session model.
//
// Each user ("subject") is allowed at most N concurrently active device
// sessions. Registration of a new device either admits it, no-ops for an
// already known device, or rejects it with the list of active sessions so
// the user can pick one to revoke. Revocation is one-way: a revoked session
// is never reactivated.
//
// Revoked rows are pruned after a retention window; pruning piggybacks on
// registration, there is no background sweeper.
//
// Transport (HTTP) integration is intentionally out of scope here.
package session
