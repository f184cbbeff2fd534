package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_ENV", "test-nonexistent")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "release" {
		t.Errorf("mode = %q", cfg.Mode)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
	if cfg.PingPeriod != 54*time.Second {
		t.Errorf("ping period = %v", cfg.PingPeriod)
	}
	if cfg.SendBuffer != 32 || cfg.ReadLimit != 32768 {
		t.Errorf("buffers: send=%d read=%d", cfg.SendBuffer, cfg.ReadLimit)
	}
	if len(cfg.StunURLs) == 0 {
		t.Error("no default STUN servers")
	}
	if cfg.RecordTo != "" {
		t.Errorf("record_to = %q, want disabled", cfg.RecordTo)
	}
	if cfg.TLS() {
		t.Error("TLS enabled without cert and key")
	}
}

func TestLoadRejectsMalformedConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	bad := []byte("ping_period: not-a-duration\n")
	if err := os.WriteFile(filepath.Join(dir, "config", "config.bad.yaml"), bad, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Chdir(dir)
	t.Setenv("CONFIG_ENV", "bad")

	if _, err := Load(); err == nil {
		t.Fatal("Load accepted a malformed config file")
	}
}

func TestTLSNeedsBothFiles(t *testing.T) {
	t.Parallel()

	c := &Config{CertFile: "cert.pem"}
	if c.TLS() {
		t.Error("TLS with cert only")
	}
	c = &Config{CertFile: "cert.pem", KeyFile: "key.pem"}
	if !c.TLS() {
		t.Error("TLS disabled with both files set")
	}
}
