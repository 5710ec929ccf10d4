package deviceapi

import (
	"os"
	"strconv"
	"strings"
)

// Config controls device API behavior.
type Config struct {
	// MaxBodyBytes bounds request bodies on the JSON endpoints.
	MaxBodyBytes int64

	// AllowLimitOverride permits the ?limit= query parameter on register.
	// Useful for testing different slot limits per request; production
	// deployments typically disable it and rely on the configured default.
	AllowLimitOverride bool
}

// LoadConfigFromEnv loads API config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		MaxBodyBytes:       envInt64("DEVICEGATE_API_MAX_BODY_BYTES", 1<<20), // 1 MiB
		AllowLimitOverride: envBool("DEVICEGATE_API_ALLOW_LIMIT_OVERRIDE", true),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	return cfg
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
