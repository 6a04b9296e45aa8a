package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/minikan.db")
	if cfg.Database.Path != "/tmp/minikan.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.API.Timeout.Std() != 10*time.Second {
		t.Fatalf("unexpected api timeout %v", cfg.API.Timeout.Std())
	}
	if cfg.Server.TokenTTL.Std() != 24*time.Hour {
		t.Fatalf("unexpected token ttl %v", cfg.Server.TokenTTL.Std())
	}
	if cfg.Cache.RedisAddr != "" {
		t.Fatal("expected cache disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/minikan.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != defaults.Database.Path {
		t.Fatalf("expected default db path, got %q", cfg.Database.Path)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[api]
base_url = "https://kanban.example.com/api"
timeout = "3s"

[database]
path = "/custom/minikan.db"

[server]
bind = "0.0.0.0:9000"
jwt_secret = "0123456789abcdef"
token_ttl = "2h"

[cache]
redis_addr = "127.0.0.1:6379"
ttl = "30s"

[logging]
level = "debug"

[logging.dev_file]
enabled = false

[board]
show_descriptions = false
default_board = "b1"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.BaseURL != "https://kanban.example.com/api" || cfg.API.Timeout.Std() != 3*time.Second {
		t.Fatalf("unexpected api config %+v", cfg.API)
	}
	if cfg.Database.Path != "/custom/minikan.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Server.Bind != "0.0.0.0:9000" || cfg.Server.TokenTTL.Std() != 2*time.Hour {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Server.MCPEndpoint != "/mcp" {
		t.Fatalf("unset keys must keep defaults, got mcp endpoint %q", cfg.Server.MCPEndpoint)
	}
	if cfg.Cache.RedisAddr != "127.0.0.1:6379" || cfg.Cache.TTL.Std() != 30*time.Second {
		t.Fatalf("unexpected cache config %+v", cfg.Cache)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.DevFile.Enabled {
		t.Fatalf("unexpected logging config %+v", cfg.Logging)
	}
	if cfg.Board.ShowDescriptions || cfg.Board.DefaultBoard != "b1" {
		t.Fatalf("unexpected board config %+v", cfg.Board)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"log level":      "[logging]\nlevel = \"loud\"\n",
		"base url":       "[api]\nbase_url = \"localhost:5000\"\n",
		"timeout":        "[api]\ntimeout = \"0s\"\n",
		"bad duration":   "[api]\ntimeout = \"soon\"\n",
		"bcrypt":         "[server]\nbcrypt_cost = 2\n",
		"same endpoints": "[server]\napi_endpoint = \"/x\"\nmcp_endpoint = \"x/\"\n",
		"empty column":   "[server]\ndefault_columns = [\"To Do\", \" \"]\n",
		"not toml":       "[server\n",
	}
	for name, content := range cases {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		if _, err := Load(path, Default("/tmp/default.db")); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte(" 90s ")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	out, _ := d.MarshalText()
	if !strings.HasPrefix(string(out), "1m30s") {
		t.Fatalf("MarshalText() = %q", out)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "config.toml")
	if err := EnsureConfigDir(target); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(target)); err != nil {
		t.Fatalf("expected dir to exist, stat error %v", err)
	}
}
