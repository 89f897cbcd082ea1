package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// App holds the runtime configuration for the kiosk.
//
// Values come from an optional TOML file (KIOSK_CONFIG) and are then
// overridden by environment variables.
type App struct {
	Env      string `toml:"env"`
	HTTPAddr string `toml:"http_addr"`

	// AppSecret signs session cookies and admin tokens.
	AppSecret string `toml:"app_secret"`

	DBDriver    string `toml:"db_driver"` // "sqlite" or "postgres"
	DBPath      string `toml:"db_path"`
	DatabaseURL string `toml:"database_url"`

	SnapDir           string        `toml:"snap_dir"`
	SnapshotCommand   string        `toml:"snapshot_command"`
	SnapshotDevice    string        `toml:"snapshot_device"`
	SnapshotTimeout   time.Duration `toml:"snapshot_timeout"`
	SnapshotMinFreeMB int           `toml:"snapshot_min_free_mb"`

	RateLimitMax     int    `toml:"rate_limit_max"`
	RateLimitBackend string `toml:"rate_limit_backend"` // "session" or "redis"
	RedisAddr        string `toml:"redis_addr"`
	AuditBackend     string `toml:"audit_backend"` // "direct", "memory" or "redis"

	JWTIssuer            string        `toml:"jwt_issuer"`
	AdminTokenTTL        time.Duration `toml:"admin_token_ttl"`
	AdminLoginPerMin     int           `toml:"admin_login_per_min"`
	AdminDefaultPassword string        `toml:"admin_default_password"`

	SessionMaxAge time.Duration `toml:"session_max_age"`
	CORSOrigins   []string      `toml:"cors_origins"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() App {
	return App{
		Env:                  "dev",
		HTTPAddr:             "127.0.0.1:5000",
		AppSecret:            "change-this-in-production-please",
		DBDriver:             "sqlite",
		DBPath:               "attendance.db",
		SnapDir:              "snapshots",
		SnapshotDevice:       "/dev/video0",
		SnapshotTimeout:      5 * time.Second,
		SnapshotMinFreeMB:    50,
		RateLimitMax:         20,
		RateLimitBackend:     "session",
		AuditBackend:         "direct",
		JWTIssuer:            "attendance-kiosk",
		AdminTokenTTL:        12 * time.Hour,
		AdminLoginPerMin:     10,
		AdminDefaultPassword: "admin123",
		SessionMaxAge:        24 * time.Hour,
	}
}

// Load returns configuration from KIOSK_CONFIG (if set) overlaid with environment variables.
func Load() (App, error) {
	cfg := Defaults()
	if path := os.Getenv("KIOSK_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return App{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return App{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *App) {
	cfg.Env = getEnv("APP_ENV", cfg.Env)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.AppSecret = getEnv("APP_SECRET", cfg.AppSecret)
	cfg.DBDriver = getEnv("DB_DRIVER", cfg.DBDriver)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.SnapDir = getEnv("SNAP_DIR", cfg.SnapDir)
	cfg.SnapshotCommand = getEnv("SNAPSHOT_COMMAND", cfg.SnapshotCommand)
	cfg.SnapshotDevice = getEnv("SNAPSHOT_DEVICE", cfg.SnapshotDevice)
	cfg.SnapshotTimeout = durationEnv("SNAPSHOT_TIMEOUT", cfg.SnapshotTimeout)
	cfg.SnapshotMinFreeMB = intEnv("SNAPSHOT_MIN_FREE_MB", cfg.SnapshotMinFreeMB)
	cfg.RateLimitMax = intEnv("RATE_LIMIT_MAX", cfg.RateLimitMax)
	cfg.RateLimitBackend = getEnv("RATE_LIMIT_BACKEND", cfg.RateLimitBackend)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.AuditBackend = getEnv("AUDIT_BACKEND", cfg.AuditBackend)
	cfg.JWTIssuer = getEnv("JWT_ISSUER", cfg.JWTIssuer)
	cfg.AdminTokenTTL = durationEnv("ADMIN_TOKEN_TTL", cfg.AdminTokenTTL)
	cfg.AdminLoginPerMin = intEnv("ADMIN_LOGIN_PER_MIN", cfg.AdminLoginPerMin)
	cfg.AdminDefaultPassword = getEnv("ADMIN_DEFAULT_PASSWORD", cfg.AdminDefaultPassword)
	cfg.SessionMaxAge = durationEnv("SESSION_MAX_AGE", cfg.SessionMaxAge)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = parseCSV(v)
	}
}

// Validate rejects combinations the server cannot run with.
func (c App) Validate() error {
	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH required for sqlite")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL required for postgres")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	switch c.AuditBackend {
	case "direct", "memory":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR required for redis audit backend")
		}
	default:
		return fmt.Errorf("unknown AUDIT_BACKEND %q", c.AuditBackend)
	}
	switch c.RateLimitBackend {
	case "session":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR required for redis rate limit backend")
		}
	default:
		return fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", c.RateLimitBackend)
	}
	if c.RateLimitMax <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX must be positive")
	}
	if c.AppSecret == "" {
		return fmt.Errorf("APP_SECRET must not be empty")
	}
	return nil
}

// Production reports whether the server runs in release mode.
func (c App) Production() bool {
	return c.Env == "production" || c.Env == "prod"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}

func parseCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if v := strings.TrimSpace(part); v != "" {
			items = append(items, v)
		}
	}
	return items
}
