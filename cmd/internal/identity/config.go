package identity

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config defines how bearer credentials are verified.
//
// Exactly one verification strategy must be selected: an HMAC secret
// (HS256/384/512), a PEM-encoded public key (RSA or ECDSA), or, for local
// demos only, unverified decoding. Refusing to guess a strategy keeps the
// resolver fail-closed: a misconfigured deployment does not silently fall
// back to trusting unsigned tokens.
type Config struct {
	// HMACSecret enables HMAC-family verification when non-empty.
	HMACSecret string

	// PublicKeyPEM enables RSA/ECDSA verification when non-empty.
	PublicKeyPEM string

	// Issuer, when non-empty, must match the token's "iss" claim.
	Issuer string

	// Audience, when non-empty, must appear in the token's "aud" claim.
	Audience string

	// ClockSkew is the leeway applied to time-based claim validation.
	ClockSkew time.Duration

	// InsecureDecode parses tokens without verifying the signature.
	// This mirrors the behavior of trusting an IdP-issued id_token as-is and
	// must never be enabled in production.
	InsecureDecode bool
}

// LoadConfigFromEnv loads resolver configuration from environment variables.
//
// One of:
//   - DEVICEGATE_AUTH_HMAC_SECRET
//   - DEVICEGATE_AUTH_PUBLIC_KEY_PEM / DEVICEGATE_AUTH_PUBLIC_KEY_FILE
//   - DEVICEGATE_AUTH_INSECURE_DECODE=true
//
// Optional:
//   - DEVICEGATE_AUTH_ISSUER
//   - DEVICEGATE_AUTH_AUDIENCE
//   - DEVICEGATE_AUTH_CLOCK_SKEW (Go duration string)
//
// Returns ErrConfig when no strategy or more than one strategy is selected,
// or when a value is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		HMACSecret:   os.Getenv("DEVICEGATE_AUTH_HMAC_SECRET"),
		PublicKeyPEM: os.Getenv("DEVICEGATE_AUTH_PUBLIC_KEY_PEM"),
		Issuer:       strings.TrimSpace(os.Getenv("DEVICEGATE_AUTH_ISSUER")),
		Audience:     strings.TrimSpace(os.Getenv("DEVICEGATE_AUTH_AUDIENCE")),
		ClockSkew:    30 * time.Second,
	}

	if v := strings.TrimSpace(os.Getenv("DEVICEGATE_AUTH_INSECURE_DECODE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.InsecureDecode = b
	}

	if cfg.PublicKeyPEM == "" {
		if path := strings.TrimSpace(os.Getenv("DEVICEGATE_AUTH_PUBLIC_KEY_FILE")); path != "" {
			pem, err := os.ReadFile(path)
			if err != nil {
				return Config{}, ErrConfig
			}
			cfg.PublicKeyPEM = string(pem)
		}
	}

	if v := os.Getenv("DEVICEGATE_AUTH_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	strategies := 0
	if cfg.HMACSecret != "" {
		strategies++
	}
	if cfg.PublicKeyPEM != "" {
		strategies++
	}
	if cfg.InsecureDecode {
		strategies++
	}
	if strategies != 1 {
		return Config{}, ErrConfig
	}

	return cfg, nil
}
