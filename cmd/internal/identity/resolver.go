// Package identity resolves opaque bearer credentials to a subject identity.
//
// The core of devicegate treats this as an external collaborator: a resolver
// yields a stable subject identifier plus the credential's claim set, or
// fails. The production strategy verifies JWT signature, issuer, and
// audience; decoding without verification exists only behind an explicit
// opt-in for local demos against an external IdP.
package identity

import (
	"context"
	"errors"
)

// Claims is the claim mapping extracted from a resolved credential.
type Claims map[string]any

// ErrUnauthenticated is returned when a credential is missing, unparseable,
// or fails verification. Resolver failures are terminal for the request.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrConfig is returned for invalid resolver configuration.
var ErrConfig = errors.New("invalid config")

// Resolver derives a trusted subject identity from a bearer credential.
type Resolver interface {
	// Resolve returns the subject (the "sub" claim) and the full claim set.
	// Any failure is reported as (or wrapping) ErrUnauthenticated: the core
	// fails closed rather than admitting on a resolver error.
	Resolve(ctx context.Context, credential string) (subject string, claims Claims, err error)
}

// StringClaim returns the named claim as a string, or def when the claim is
// absent or not a string.
func StringClaim(claims Claims, name, def string) string {
	if v, ok := claims[name].(string); ok && v != "" {
		return v
	}
	return def
}
