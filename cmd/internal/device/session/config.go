package session

import (
	"os"
	"strconv"
	"time"
)

// Config defines runtime configuration for the session subsystem.
//
// It controls the default per-subject device limit and the retention window
// for revoked rows. This struct is intentionally explicit and
// environment-driven so production deployments can tune policy without code
// changes.
type Config struct {
	// DefaultLimit is the per-subject device limit applied when a request
	// does not carry an explicit override.
	DefaultLimit int

	// Retention is how long a revoked row is kept before the pruning sweep
	// deletes it. Measured against last_seen.
	Retention time.Duration
}

// DefaultConfig returns the defaults: 3 device slots, 30-day retention.
func DefaultConfig() Config {
	return Config{
		DefaultLimit: 3,
		Retention:    30 * 24 * time.Hour,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional:
//   - DEVICEGATE_DEVICE_LIMIT (positive integer)
//   - DEVICEGATE_REVOKED_RETENTION (Go duration string, e.g. "720h")
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("DEVICEGATE_DEVICE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, ErrConfig
		}
		cfg.DefaultLimit = n
	}

	if v := os.Getenv("DEVICEGATE_REVOKED_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.Retention = d
	}

	return cfg, nil
}
