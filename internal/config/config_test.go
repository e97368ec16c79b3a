package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for explicitly named missing file")
	}

	// With no explicit path the search locations miss and defaults apply.
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server.port default = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.SSLMode != "require" {
		t.Errorf("database.ssl_mode default = %q, want require", cfg.Database.SSLMode)
	}
	if cfg.Audit.LedgerCapacity != 1000 {
		t.Errorf("audit.ledger_capacity default = %d, want 1000", cfg.Audit.LedgerCapacity)
	}
	if cfg.Audit.RetentionDays != 365 {
		t.Errorf("audit.retention_days default = %d, want 365", cfg.Audit.RetentionDays)
	}
	if cfg.Archive.DefaultBackend != "local" {
		t.Errorf("archive.default_backend default = %q, want local", cfg.Archive.DefaultBackend)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("logging.format default = %q, want json", cfg.Logging.Format)
	}
}

func TestLoad_YAMLFileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9443
database:
  name: medcore_staging
audit:
  ledger_capacity: 250
  archive_interval: 6h
archive:
  default_backend: s3
  s3:
    region: eu-central-1
    bucket: medcore-audit-staging
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Port != 9443 {
		t.Errorf("server.port = %d, want 9443", cfg.Server.Port)
	}
	if cfg.Database.Name != "medcore_staging" {
		t.Errorf("database.name = %q", cfg.Database.Name)
	}
	if cfg.Audit.LedgerCapacity != 250 {
		t.Errorf("audit.ledger_capacity = %d, want 250", cfg.Audit.LedgerCapacity)
	}
	if cfg.Audit.ArchiveInterval != 6*time.Hour {
		t.Errorf("audit.archive_interval = %v, want 6h", cfg.Audit.ArchiveInterval)
	}
	if cfg.Archive.S3.Bucket != "medcore-audit-staging" {
		t.Errorf("archive.s3.bucket = %q", cfg.Archive.S3.Bucket)
	}
	// Untouched keys keep their defaults.
	if cfg.Database.Port != 5432 {
		t.Errorf("database.port = %d, want default 5432", cfg.Database.Port)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
database:
  host: db.internal
`)
	t.Setenv("MED_DATABASE_HOST", "db.override")
	t.Setenv("MED_SERVER_PORT", "8443")
	t.Setenv("MED_AUDIT_RETENTION_DAYS", "90")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Database.Host != "db.override" {
		t.Errorf("database.host = %q, want env override", cfg.Database.Host)
	}
	if cfg.Server.Port != 8443 {
		t.Errorf("server.port = %d, want 8443", cfg.Server.Port)
	}
	if cfg.Audit.RetentionDays != 90 {
		t.Errorf("audit.retention_days = %d, want 90", cfg.Audit.RetentionDays)
	}
}

func TestLoad_PasswordEnvExpansion(t *testing.T) {
	path := writeConfigFile(t, `
database:
  password: ${MEDCORE_TEST_DB_PASSWORD}
`)
	t.Setenv("MEDCORE_TEST_DB_PASSWORD", "s3cret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Database.Password != "s3cret" {
		t.Errorf("database.password = %q, want expanded secret", cfg.Database.Password)
	}
}

func TestLoad_JWTSecretFallsBackToUnprefixedEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-infra")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Security.JWTSecret != "from-infra" {
		t.Errorf("security.jwt_secret = %q, want unprefixed fallback", cfg.Security.JWTSecret)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			"bad port",
			"server:\n  port: 0\n",
			"invalid server port",
		},
		{
			"bad archive backend",
			"archive:\n  default_backend: tape\n",
			"invalid archive backend",
		},
		{
			"s3 without bucket",
			"archive:\n  default_backend: s3\n",
			"archive.s3.bucket is required",
		},
		{
			"azure without key",
			"archive:\n  default_backend: azure\n  azure:\n    account_name: medcore\n    container_name: audit\n",
			"archive.azure.account_key is required",
		},
		{
			"tls without cert",
			"security:\n  tls:\n    enabled: true\n",
			"security.tls.cert_file is required",
		},
		{
			"bad log level",
			"logging:\n  level: verbose\n",
			"invalid logging level",
		},
		{
			"negative retention",
			"audit:\n  retention_days: -1\n",
			"audit.retention_days",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfigFile(t, tc.yaml)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db.internal", Port: 5432, User: "medcore",
		Password: "pw", Name: "medcore", SSLMode: "require",
	}
	want := "host=db.internal port=5432 user=medcore password=pw dbname=medcore sslmode=require"
	if got := cfg.GetDSN(); got != want {
		t.Errorf("GetDSN() = %q\nwant       %q", got, want)
	}
}

func TestServerConfig_GetAddress(t *testing.T) {
	cfg := ServerConfig{Host: "0.0.0.0", Port: 8080}
	if got := cfg.GetAddress(); got != "0.0.0.0:8080" {
		t.Errorf("GetAddress() = %q", got)
	}
}

func TestWatch_ReloadsOnFileChange(t *testing.T) {
	path := writeConfigFile(t, "audit:\n  retention_days: 30\n")

	reloaded := make(chan *Config, 1)
	cfg, err := Watch(path, func(c *Config) {
		select {
		case reloaded <- c:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Watch error: %v", err)
	}
	if cfg.Audit.RetentionDays != 30 {
		t.Fatalf("initial retention_days = %d, want 30", cfg.Audit.RetentionDays)
	}

	if err := os.WriteFile(path, []byte("audit:\n  retention_days: 7\n"), 0600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case c := <-reloaded:
		if c.Audit.RetentionDays != 7 {
			t.Errorf("reloaded retention_days = %d, want 7", c.Audit.RetentionDays)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("config change was never observed")
	}
}
