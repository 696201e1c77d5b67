package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromMissingFile(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Host != nil {
		t.Error("missing file must yield zero config")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"host: eos",
		"fallback_host: 100.64.0.2",
		"user: ops",
		"port: 8200",
		"connect_timeout: 5s",
	}, "\n"))

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	s := cfg.Resolve()
	if s.Host != "eos" || s.FallbackHost != "100.64.0.2" || s.User != "ops" {
		t.Errorf("settings = %+v", s)
	}
	if s.Port != 8200 {
		t.Errorf("port = %d", s.Port)
	}
	if s.ConnectTimeout != 5*time.Second {
		t.Errorf("connect_timeout = %v", s.ConnectTimeout)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "host: from-file\nport: 8200\n")
	t.Setenv("REMOTEGATE_HOST", "from-env")
	t.Setenv("REMOTEGATE_PORT", "9100")
	t.Setenv("REMOTEGATE_CONNECT_TIMEOUT", "3s")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	s := cfg.Resolve()
	if s.Host != "from-env" {
		t.Errorf("host = %q, want env value", s.Host)
	}
	if s.Port != 9100 {
		t.Errorf("port = %d, want env value", s.Port)
	}
	if s.ConnectTimeout != 3*time.Second {
		t.Errorf("connect_timeout = %v", s.ConnectTimeout)
	}
}

func TestEnvParseError(t *testing.T) {
	t.Setenv("REMOTEGATE_PORT", "not-a-number")
	if _, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateBounds(t *testing.T) {
	for _, content := range []string{
		"port: 0\n",
		"port: 70000\n",
		"connect_timeout: -1s\n",
		"max_output_bytes: -1\n",
	} {
		if _, err := LoadFrom(writeConfig(t, content)); err == nil {
			t.Errorf("config %q passed validation", content)
		}
	}
}

func TestResolveDefaults(t *testing.T) {
	s := Config{}.Resolve()
	if s.User != DefaultUser {
		t.Errorf("user = %q", s.User)
	}
	if s.Port != DefaultPort {
		t.Errorf("port = %d", s.Port)
	}
	if s.ConnectTimeout != DefaultConnectTimeout {
		t.Errorf("connect_timeout = %v", s.ConnectTimeout)
	}
	if s.MaxOutputBytes != DefaultMaxOutputBytes {
		t.Errorf("max_output_bytes = %d", s.MaxOutputBytes)
	}
	if s.Host != "" || s.FallbackHost != "" {
		t.Errorf("hosts should default empty, got %+v", s)
	}
	if !strings.HasSuffix(s.IdentityFile, filepath.Join(".ssh", "id_ed25519")) {
		t.Errorf("identity file = %q", s.IdentityFile)
	}
}
