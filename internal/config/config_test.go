package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("KIOSK_CONFIG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DBDriver != "sqlite" {
		t.Errorf("DBDriver = %q, want sqlite", cfg.DBDriver)
	}
	if cfg.RateLimitMax != 20 {
		t.Errorf("RateLimitMax = %d, want 20", cfg.RateLimitMax)
	}
	if cfg.SnapDir != "snapshots" {
		t.Errorf("SnapDir = %q, want snapshots", cfg.SnapDir)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("KIOSK_CONFIG", "")
	t.Setenv("APP_SECRET", "s3cret")
	t.Setenv("DB_PATH", "/tmp/k.db")
	t.Setenv("SNAP_DIR", "/tmp/snaps")
	t.Setenv("RATE_LIMIT_MAX", "5")
	t.Setenv("SNAPSHOT_TIMEOUT", "2s")
	t.Setenv("CORS_ORIGINS", "http://a.local, http://b.local,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AppSecret != "s3cret" {
		t.Errorf("AppSecret = %q, want s3cret", cfg.AppSecret)
	}
	if cfg.DBPath != "/tmp/k.db" {
		t.Errorf("DBPath = %q, want /tmp/k.db", cfg.DBPath)
	}
	if cfg.SnapDir != "/tmp/snaps" {
		t.Errorf("SnapDir = %q, want /tmp/snaps", cfg.SnapDir)
	}
	if cfg.RateLimitMax != 5 {
		t.Errorf("RateLimitMax = %d, want 5", cfg.RateLimitMax)
	}
	if cfg.SnapshotTimeout != 2*time.Second {
		t.Errorf("SnapshotTimeout = %v, want 2s", cfg.SnapshotTimeout)
	}
	want := []string{"http://a.local", "http://b.local"}
	if !reflect.DeepEqual(cfg.CORSOrigins, want) {
		t.Errorf("CORSOrigins = %v, want %v", cfg.CORSOrigins, want)
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("KIOSK_CONFIG", "")
	t.Setenv("RATE_LIMIT_MAX", "lots")
	t.Setenv("SNAPSHOT_TIMEOUT", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RateLimitMax != 20 {
		t.Errorf("RateLimitMax = %d, want fallback 20", cfg.RateLimitMax)
	}
	if cfg.SnapshotTimeout != 5*time.Second {
		t.Errorf("SnapshotTimeout = %v, want fallback 5s", cfg.SnapshotTimeout)
	}
}

func TestLoad_TOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kiosk.toml")
	content := `
http_addr = "0.0.0.0:8080"
db_path = "/var/lib/kiosk/attendance.db"
rate_limit_max = 30
snapshot_timeout = "3s"
cors_origins = ["http://kiosk.local"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("KIOSK_CONFIG", path)
	t.Setenv("RATE_LIMIT_MAX", "40")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("HTTPAddr = %q, want 0.0.0.0:8080", cfg.HTTPAddr)
	}
	if cfg.DBPath != "/var/lib/kiosk/attendance.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.RateLimitMax != 40 {
		t.Errorf("RateLimitMax = %d, want env value 40", cfg.RateLimitMax)
	}
	if cfg.SnapshotTimeout != 3*time.Second {
		t.Errorf("SnapshotTimeout = %v, want 3s", cfg.SnapshotTimeout)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://kiosk.local" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("KIOSK_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	if _, err := Load(); err == nil {
		t.Error("Load() expected error for missing config file")
	}
}

func TestApp_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*App)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*App) {}},
		{name: "unknown driver", mutate: func(a *App) { a.DBDriver = "mysql" }, wantErr: true},
		{name: "postgres without url", mutate: func(a *App) { a.DBDriver = "postgres" }, wantErr: true},
		{name: "postgres with url", mutate: func(a *App) {
			a.DBDriver = "postgres"
			a.DatabaseURL = "postgres://localhost/kiosk"
		}},
		{name: "redis audit without addr", mutate: func(a *App) { a.AuditBackend = "redis" }, wantErr: true},
		{name: "redis limiter with addr", mutate: func(a *App) {
			a.RateLimitBackend = "redis"
			a.RedisAddr = "localhost:6379"
		}},
		{name: "zero rate limit", mutate: func(a *App) { a.RateLimitMax = 0 }, wantErr: true},
		{name: "empty secret", mutate: func(a *App) { a.AppSecret = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
