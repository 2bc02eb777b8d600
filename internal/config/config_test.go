package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"STORE_DRIVER", "TICK_SPEC", "RUN_TIMEOUT", "SCAN_TARGETS", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	chdir(t, t.TempDir())

	cfg := Load()
	if cfg.StoreDriver != "postgres" || cfg.TickSpec != "* * * * *" || cfg.RunTimeout != 30*time.Minute {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.ScanTargets != nil {
		t.Errorf("ScanTargets: got %v, want nil", cfg.ScanTargets)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("SCAN_TARGETS", " 10.0.0.0/24, ,192.168.1.1 ")
	t.Setenv("RUN_TIMEOUT", "90s")
	t.Setenv("RUN_NOW_PER_MINUTE", "-3")

	cfg := Load()
	if cfg.StoreDriver != "sqlite" {
		t.Errorf("StoreDriver: got %q", cfg.StoreDriver)
	}
	if strings.Join(cfg.ScanTargets, "|") != "10.0.0.0/24|192.168.1.1" {
		t.Errorf("ScanTargets: got %v", cfg.ScanTargets)
	}
	if cfg.RunTimeout != 90*time.Second {
		t.Errorf("RunTimeout: got %v", cfg.RunTimeout)
	}
	if cfg.RunNowPerMinute != 6 {
		t.Errorf("RunNowPerMinute: got %d, want fallback 6", cfg.RunNowPerMinute)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SQLITE_PATH=/tmp/from-dotenv.db\nNMAP_PATH=/opt/nmap\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)
	t.Setenv("SQLITE_PATH", "")
	t.Setenv("NMAP_PATH", "/usr/bin/nmap")
	os.Unsetenv("SQLITE_PATH")

	cfg := Load()
	if cfg.SQLitePath != "/tmp/from-dotenv.db" {
		t.Errorf("SQLitePath: got %q", cfg.SQLitePath)
	}
	if cfg.NmapPath != "/usr/bin/nmap" {
		t.Errorf("environment must win over .env, got %q", cfg.NmapPath)
	}
}

func TestValidate(t *testing.T) {
	base := Config{StoreDriver: "memory", LogFormat: "text", LogLevel: "info", TickSpec: "* * * * *", RunTimeout: time.Minute, ShutdownTimeout: time.Second}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"driver", func(c *Config) { c.StoreDriver = "mysql" }, "STORE_DRIVER"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "LOG_LEVEL"},
		{"tick spec", func(c *Config) { c.TickSpec = "every minute" }, "TICK_SPEC"},
		{"timeout", func(c *Config) { c.RunTimeout = 0 }, "RUN_TIMEOUT"},
		{"tls pair", func(c *Config) { c.TLSCertFile = "cert.pem" }, "TLS_CERT_FILE"},
		{"prod secret", func(c *Config) { c.Env = "prod" }, "JWT_SECRET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate: got %v, want error mentioning %s", err, tt.want)
			}
		})
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (stand-in for testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
