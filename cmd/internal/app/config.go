package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// Persistence selection, in priority order: Postgres when DatabaseURL is
	// set, SQLite when SQLitePath is set, otherwise in-memory.
	DatabaseURL string
	SQLitePath  string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, /readyz returns 503 unless Postgres is configured and reachable.
	ReadinessRequireDB bool

	// CORS policy for browser clients.
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("DEVICEGATE_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("DEVICEGATE_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("DEVICEGATE_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("DEVICEGATE_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("DEVICEGATE_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("DEVICEGATE_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("DEVICEGATE_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("DEVICEGATE_DATABASE_URL", ""),
		SQLitePath:  EnvString("DEVICEGATE_SQLITE_PATH", ""),
		DBMaxConns:  EnvInt32("DEVICEGATE_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("DEVICEGATE_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("DEVICEGATE_READINESS_REQUIRE_DB", false),

		CORSAllowedOrigins:   EnvStrings("DEVICEGATE_CORS_ALLOWED_ORIGINS", nil),
		CORSAllowCredentials: EnvBool("DEVICEGATE_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("DEVICEGATE_CORS_MAX_AGE_SECONDS", 600),
	}
}
