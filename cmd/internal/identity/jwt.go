package identity

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTResolver resolves bearer JWTs according to the configured strategy.
type JWTResolver struct {
	cfg Config

	// Exactly one of these is set for the verifying strategies.
	hmacSecret []byte
	rsaKey     *rsa.PublicKey
	ecdsaKey   *ecdsa.PublicKey

	parser *jwt.Parser
}

// NewJWTResolver constructs a resolver from cfg. The public key, when
// configured, is parsed once here so per-request resolution stays cheap.
func NewJWTResolver(cfg Config) (*JWTResolver, error) {
	r := &JWTResolver{
		cfg:    cfg,
		parser: jwt.NewParser(jwt.WithLeeway(cfg.ClockSkew)),
	}

	switch {
	case cfg.HMACSecret != "":
		r.hmacSecret = []byte(cfg.HMACSecret)
	case cfg.PublicKeyPEM != "":
		if rsaKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM)); err == nil {
			r.rsaKey = rsaKey
			break
		}
		ecdsaKey, err := jwt.ParseECPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("%w: unsupported public key", ErrConfig)
		}
		r.ecdsaKey = ecdsaKey
	case cfg.InsecureDecode:
		// No key material; Resolve parses without verification.
	default:
		return nil, ErrConfig
	}

	return r, nil
}

// Resolve parses and, unless insecure decoding is enabled, verifies the
// credential, then enforces the configured issuer/audience. The subject is
// the "sub" claim; an empty subject is a resolution failure.
func (r *JWTResolver) Resolve(_ context.Context, credential string) (string, Claims, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return "", nil, ErrUnauthenticated
	}

	mapClaims := jwt.MapClaims{}

	if r.cfg.InsecureDecode {
		if _, _, err := r.parser.ParseUnverified(credential, mapClaims); err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		}
	} else {
		tok, err := r.parser.ParseWithClaims(credential, mapClaims, r.keyFor)
		if err != nil || !tok.Valid {
			return "", nil, fmt.Errorf("%w: invalid token", ErrUnauthenticated)
		}
	}

	if err := r.checkIssuerAudience(mapClaims); err != nil {
		return "", nil, err
	}

	sub, _ := mapClaims["sub"].(string)
	if sub == "" {
		return "", nil, fmt.Errorf("%w: missing sub claim", ErrUnauthenticated)
	}

	return sub, Claims(mapClaims), nil
}

// keyFor pins the signing method family to the configured key material;
// an HS256 token must never be checked against an RSA public key and vice
// versa (algorithm-confusion hardening).
func (r *JWTResolver) keyFor(tok *jwt.Token) (any, error) {
	switch tok.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if r.hmacSecret == nil {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return r.hmacSecret, nil
	case *jwt.SigningMethodRSA:
		if r.rsaKey == nil {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return r.rsaKey, nil
	case *jwt.SigningMethodECDSA:
		if r.ecdsaKey == nil {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return r.ecdsaKey, nil
	default:
		return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
	}
}

func (r *JWTResolver) checkIssuerAudience(claims jwt.MapClaims) error {
	if r.cfg.Issuer != "" {
		iss, err := claims.GetIssuer()
		if err != nil || iss != r.cfg.Issuer {
			return fmt.Errorf("%w: issuer mismatch", ErrUnauthenticated)
		}
	}

	if r.cfg.Audience != "" {
		aud, err := claims.GetAudience()
		if err != nil {
			return fmt.Errorf("%w: audience mismatch", ErrUnauthenticated)
		}
		ok := false
		for _, a := range aud {
			if a == r.cfg.Audience {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("%w: audience mismatch", ErrUnauthenticated)
		}
	}

	return nil
}
