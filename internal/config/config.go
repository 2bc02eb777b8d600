package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

type Config struct {
	Port string

	// Env is "dev" (default) or "prod". When "prod", JWT_SECRET must be set.
	Env string

	// StoreDriver selects persistence: "postgres" (default), "sqlite" or "memory".
	StoreDriver string

	DBHost string
	DBPort string
	DBName string
	DBUser string
	DBPass string

	// DBMaxOpenConns is the maximum number of open connections to the database (default 25).
	DBMaxOpenConns int
	// DBMaxIdleConns is the maximum number of idle connections (default 5).
	DBMaxIdleConns int

	// SQLitePath is the database file used when StoreDriver is "sqlite".
	SQLitePath string

	// JWTSecret enables bearer auth on /v1 when set.
	JWTSecret string

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	// When empty, the API listens with plain HTTP.
	TLSCertFile string
	TLSKeyFile  string

	// CORSAllowedOrigins is a list of origins allowed for CORS (e.g. https://app.example.com, http://localhost:3000).
	// Set via CORS_ALLOWED_ORIGINS (comma-separated). When empty, no CORS headers are sent (same-origin only).
	CORSAllowedOrigins []string

	// LogFormat is "text" (default) or "json" for structured logging.
	LogFormat string
	// LogLevel is debug, info (default), warn or error.
	LogLevel string
	// LogFile, when set, receives a copy of the log through a rotating writer.
	LogFile string

	// NmapPath is the path to the nmap executable (e.g. "nmap" for Linux/Mac, or full Windows path).
	NmapPath string
	// ScanTargets are the hosts or CIDRs swept by each scan run.
	ScanTargets []string

	// TickSpec is the cron spec of the scheduler tick (default every minute).
	TickSpec string
	// RunTimeout cancels a scan run that takes longer (default 30m).
	RunTimeout time.Duration
	// RunNowPerMinute limits POST /v1/runs per client IP (default 6).
	RunNowPerMinute int
	// ShutdownTimeout bounds graceful shutdown (default 15s).
	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory, if present, is loaded first; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "dev"),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "postgres")),

		DBHost: getEnv("DB_HOST", "localhost"),
		DBPort: getEnv("DB_PORT", "5432"),
		DBName: getEnv("DB_NAME", "scheddb"),
		DBUser: getEnv("DB_USER", "scheduser"),
		DBPass: getEnv("DB_PASS", "schedpass"),

		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),

		SQLitePath: getEnv("SQLITE_PATH", "data/scheduler.db"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		// Optional TLS configuration for HTTPS.
		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),

		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:   getEnv("LOG_FILE", ""),

		// Default "nmap" works on Linux/Mac when nmap is in PATH; set NMAP_PATH for Windows or custom install.
		NmapPath:    getEnv("NMAP_PATH", "nmap"),
		ScanTargets: getEnvList("SCAN_TARGETS"),

		TickSpec:        getEnv("TICK_SPEC", "* * * * *"),
		RunTimeout:      getEnvDuration("RUN_TIMEOUT", 30*time.Minute),
		RunNowPerMinute: getEnvInt("RUN_NOW_PER_MINUTE", 6),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}
}

// Validate reports every setting that would stop the service from starting.
func (c Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case "postgres", "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q: want postgres, sqlite or memory", c.StoreDriver))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q: want text or json", c.LogFormat))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q: want debug, info, warn or error", c.LogLevel))
	}
	if _, err := cron.ParseStandard(c.TickSpec); err != nil {
		errs = append(errs, fmt.Errorf("TICK_SPEC %q: %w", c.TickSpec, err))
	}
	if c.RunTimeout <= 0 {
		errs = append(errs, errors.New("RUN_TIMEOUT must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		errs = append(errs, errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together"))
	}
	if c.Env == "prod" && c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required when ENV=prod"))
	}
	return errors.Join(errs...)
}

// TLSEnabled reports whether both TLS files are configured.
func (c Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// getEnvList splits a comma-separated variable and trims spaces. Empty items are omitted.
func getEnvList(key string) []string {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if o := strings.TrimSpace(p); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
