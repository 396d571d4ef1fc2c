package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatalf("write config: %v", err)
	}
	// WriteFile's perm is filtered by the umask; chmod so the file really
	// has the requested mode.
	if err := os.Chmod(path, perm); err != nil {
		t.Fatalf("chmod config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Backend.BaseURL != "http://localhost:8000" {
		t.Errorf("unexpected default base url: %s", cfg.Backend.BaseURL)
	}
	if cfg.Backend.RespTimeout != 300*time.Second {
		t.Errorf("unexpected default resp timeout: %s", cfg.Backend.RespTimeout)
	}
	if !cfg.Backend.CircuitBreaker.Enabled {
		t.Error("circuit breaker should default to enabled")
	}
	if !cfg.History.Enabled {
		t.Error("history should default to enabled")
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("unexpected default log level: %s", cfg.Logger.Level)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Backend.BaseURL != "http://localhost:8000" {
		t.Errorf("expected defaults, got base url %s", cfg.Backend.BaseURL)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: https://persai.example.com
  datasource_path: /data/reports
  conn_timeout: 5s
logger:
  level: debug
  format: json
`, 0o600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend.BaseURL != "https://persai.example.com" {
		t.Errorf("base url not loaded: %s", cfg.Backend.BaseURL)
	}
	if cfg.Backend.DatasourcePath != "/data/reports" {
		t.Errorf("datasource path not loaded: %s", cfg.Backend.DatasourcePath)
	}
	if cfg.Backend.ConnTimeout != 5*time.Second {
		t.Errorf("conn timeout not loaded: %s", cfg.Backend.ConnTimeout)
	}
	if cfg.Logger.Level != "debug" || cfg.Logger.Format != "json" {
		t.Errorf("logger section not loaded: %+v", cfg.Logger)
	}
}

func TestLoadRejectsInsecurePermissions(t *testing.T) {
	path := writeConfig(t, "backend:\n  base_url: http://x\n", 0o666)

	if _, err := Load(path); err == nil {
		t.Fatal("world-writable config should be rejected")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PERSCHAT_BACKEND_BASE_URL", "http://override:9000")
	t.Setenv("PERSCHAT_DATASOURCE_PATH", "/env/docs")
	t.Setenv("PERSCHAT_JWT_PAYLOAD", "payload-part")
	t.Setenv("PERSCHAT_LOGGER_LEVEL", "warn")
	t.Setenv("PERSCHAT_HISTORY_ENABLED", "false")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Backend.BaseURL != "http://override:9000" {
		t.Errorf("base url override not applied: %s", cfg.Backend.BaseURL)
	}
	if cfg.Backend.DatasourcePath != "/env/docs" {
		t.Errorf("datasource override not applied: %s", cfg.Backend.DatasourcePath)
	}
	if cfg.Backend.Auth.JWTPayload != "payload-part" {
		t.Errorf("jwt payload override not applied")
	}
	if cfg.Logger.Level != "warn" {
		t.Errorf("logger level override not applied: %s", cfg.Logger.Level)
	}
	if cfg.History.Enabled {
		t.Error("history enabled override not applied")
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	cfg.Backend.BaseURL = "ftp://nope"
	if err := Validate(cfg); err == nil {
		t.Error("non-http base url should fail validation")
	}

	cfg = Defaults()
	cfg.Logger.Format = "xml"
	if err := Validate(cfg); err == nil {
		t.Error("unknown logger format should fail validation")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	const passphrase = "correct horse"
	const secret = "jwt-signature-value"

	enc, err := EncryptValue(secret, passphrase)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	dec, err := DecryptValue(enc, passphrase)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if dec != secret {
		t.Errorf("round trip mismatch: %q", dec)
	}

	if _, err := DecryptValue(enc, "wrong"); err == nil {
		t.Error("wrong passphrase should fail")
	}
}

func TestLoadDecryptsEncSecrets(t *testing.T) {
	const passphrase = "k"
	enc, err := EncryptValue("sig", passphrase)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	path := writeConfig(t, "backend:\n  auth:\n    jwt_signature: enc:"+enc+"\n", 0o600)
	t.Setenv("PERSCHAT_CONFIG_KEY", passphrase)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend.Auth.JWTSignature != "sig" {
		t.Errorf("signature not decrypted: %q", cfg.Backend.Auth.JWTSignature)
	}
}
