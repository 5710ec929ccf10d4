package identity

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-0123456789"

func signHS256(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func newHMACResolver(t *testing.T, cfg Config) *JWTResolver {
	t.Helper()

	cfg.HMACSecret = testSecret
	if cfg.ClockSkew == 0 {
		cfg.ClockSkew = 30 * time.Second
	}
	r, err := NewJWTResolver(cfg)
	if err != nil {
		t.Fatalf("NewJWTResolver: %v", err)
	}
	return r
}

func TestJWTResolver_HS256RoundTrip(t *testing.T) {
	t.Parallel()

	r := newHMACResolver(t, Config{})
	now := time.Now()

	tok := signHS256(t, jwt.MapClaims{
		"sub":          "user-7",
		"name":         "Ada Lovelace",
		"phone_number": "+1-555-0100",
		"exp":          now.Add(time.Hour).Unix(),
		"iat":          now.Unix(),
	})

	sub, claims, err := r.Resolve(context.Background(), tok)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sub != "user-7" {
		t.Fatalf("subject = %q, want user-7", sub)
	}
	if got := StringClaim(claims, "name", "Demo User"); got != "Ada Lovelace" {
		t.Fatalf("name claim = %q", got)
	}
	if got := StringClaim(claims, "nickname", "N/A"); got != "N/A" {
		t.Fatalf("missing claim default = %q", got)
	}
}

func TestJWTResolver_RejectsBadSignature(t *testing.T) {
	t.Parallel()

	r := newHMACResolver(t, Config{})

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-7"})
	s, err := tok.SignedString([]byte("wrong-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, _, err := r.Resolve(context.Background(), s); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestJWTResolver_RejectsExpired(t *testing.T) {
	t.Parallel()

	r := newHMACResolver(t, Config{ClockSkew: time.Second})

	tok := signHS256(t, jwt.MapClaims{
		"sub": "user-7",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	if _, _, err := r.Resolve(context.Background(), tok); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for expired token, got %v", err)
	}
}

func TestJWTResolver_ClockSkewLeeway(t *testing.T) {
	t.Parallel()

	r := newHMACResolver(t, Config{ClockSkew: time.Minute})

	// Expired ten seconds ago; within the one-minute leeway.
	tok := signHS256(t, jwt.MapClaims{
		"sub": "user-7",
		"exp": time.Now().Add(-10 * time.Second).Unix(),
	})

	if _, _, err := r.Resolve(context.Background(), tok); err != nil {
		t.Fatalf("Resolve within leeway: %v", err)
	}
}

func TestJWTResolver_IssuerAudience(t *testing.T) {
	t.Parallel()

	r := newHMACResolver(t, Config{Issuer: "devicegate-test", Audience: "devicegate"})

	good := signHS256(t, jwt.MapClaims{
		"sub": "user-7",
		"iss": "devicegate-test",
		"aud": []string{"other", "devicegate"},
	})
	if _, _, err := r.Resolve(context.Background(), good); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	badIss := signHS256(t, jwt.MapClaims{"sub": "user-7", "iss": "spoofed", "aud": "devicegate"})
	if _, _, err := r.Resolve(context.Background(), badIss); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("issuer mismatch: got %v", err)
	}

	badAud := signHS256(t, jwt.MapClaims{"sub": "user-7", "iss": "devicegate-test", "aud": "someone-else"})
	if _, _, err := r.Resolve(context.Background(), badAud); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("audience mismatch: got %v", err)
	}
}

func TestJWTResolver_MissingSubject(t *testing.T) {
	t.Parallel()

	r := newHMACResolver(t, Config{})

	tok := signHS256(t, jwt.MapClaims{"name": "No Subject"})
	if _, _, err := r.Resolve(context.Background(), tok); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for missing sub, got %v", err)
	}
}

func TestJWTResolver_EmptyCredential(t *testing.T) {
	t.Parallel()

	r := newHMACResolver(t, Config{})
	if _, _, err := r.Resolve(context.Background(), "  "); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for empty credential, got %v", err)
	}
}

func TestJWTResolver_AlgorithmPinning(t *testing.T) {
	t.Parallel()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	r, err := NewJWTResolver(Config{PublicKeyPEM: string(pemBytes), ClockSkew: 30 * time.Second})
	if err != nil {
		t.Fatalf("NewJWTResolver: %v", err)
	}

	// ES256 token signed by the matching key resolves.
	esTok := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{"sub": "user-7"})
	signed, err := esTok.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, _, err := r.Resolve(context.Background(), signed); err != nil {
		t.Fatalf("Resolve ES256: %v", err)
	}

	// An HS256 token must be rejected outright, even if it were signed with
	// bytes derived from the public key.
	hsTok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-7"})
	hsSigned, err := hsTok.SignedString(pemBytes)
	if err != nil {
		t.Fatalf("sign HS256: %v", err)
	}
	if _, _, err := r.Resolve(context.Background(), hsSigned); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("HS256 against public-key resolver: got %v", err)
	}
}

func TestJWTResolver_InsecureDecode(t *testing.T) {
	t.Parallel()

	r, err := NewJWTResolver(Config{InsecureDecode: true, ClockSkew: 30 * time.Second})
	if err != nil {
		t.Fatalf("NewJWTResolver: %v", err)
	}

	// Signed with a key nobody holds; insecure mode accepts it anyway.
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-7", "name": "Demo"})
	signed, err := tok.SignedString([]byte("throwaway"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	sub, claims, err := r.Resolve(context.Background(), signed)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sub != "user-7" || StringClaim(claims, "name", "") != "Demo" {
		t.Fatalf("unexpected resolution: sub=%q claims=%v", sub, claims)
	}

	if _, _, err := r.Resolve(context.Background(), "not-a-jwt"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("garbage credential: got %v", err)
	}
}

func TestNewJWTResolver_NoStrategy(t *testing.T) {
	t.Parallel()

	if _, err := NewJWTResolver(Config{}); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}
