package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.Session = "work"
	cfg.Engine.BaseURL = "http://engine.internal:3000"
	cfg.Tuning.QRReuseWindow = Duration{25 * time.Second}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Session != "work" {
		t.Errorf("Session = %q, want %q", loaded.Session, "work")
	}
	if loaded.Engine.BaseURL != "http://engine.internal:3000" {
		t.Errorf("Engine.BaseURL = %q", loaded.Engine.BaseURL)
	}
	if loaded.Tuning.QRReuseWindow.Duration != 25*time.Second {
		t.Errorf("QRReuseWindow = %v, want 25s", loaded.Tuning.QRReuseWindow.Duration)
	}
}

func TestLoadMissingReturnsDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Session != "default" {
		t.Errorf("Session = %q, want default", cfg.Session)
	}
	if cfg.HTTP.ListenAddr != ":8777" {
		t.Errorf("ListenAddr = %q, want :8777", cfg.HTTP.ListenAddr)
	}
	if cfg.Tuning.ChatCap != 300 {
		t.Errorf("ChatCap = %d, want 300", cfg.Tuning.ChatCap)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	content := "session = \"field\"\n\n[tuning]\nchat_cap = 50\nlist_long_timeout = \"2m\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Session != "field" {
		t.Errorf("Session = %q, want field", cfg.Session)
	}
	if cfg.Tuning.ChatCap != 50 {
		t.Errorf("ChatCap = %d, want 50", cfg.Tuning.ChatCap)
	}
	if cfg.Tuning.ListLongTimeout.Duration != 2*time.Minute {
		t.Errorf("ListLongTimeout = %v, want 2m", cfg.Tuning.ListLongTimeout.Duration)
	}
	// Absent keys keep defaults.
	if cfg.Tuning.StartAttempts != 3 {
		t.Errorf("StartAttempts = %d, want 3", cfg.Tuning.StartAttempts)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty session", func(c *Config) { c.Session = "" }, true},
		{"session with spaces", func(c *Config) { c.Session = "my session" }, true},
		{"bad engine url", func(c *Config) { c.Engine.BaseURL = "not-a-url" }, true},
		{"bad webhook url", func(c *Config) { c.HTTP.WebhookURL = "::::" }, true},
		{"good webhook url", func(c *Config) { c.HTTP.WebhookURL = "http://gw:8777/webhook" }, false},
		{"zero start attempts", func(c *Config) { c.Tuning.StartAttempts = 0 }, true},
		{"zero chat cap", func(c *Config) { c.Tuning.ChatCap = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("90s")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if d.Duration != 90*time.Second {
		t.Errorf("Duration = %v, want 90s", d.Duration)
	}

	out, err := d.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error = %v", err)
	}
	if string(out) != "1m30s" {
		t.Errorf("MarshalText() = %q, want 1m30s", out)
	}

	if err := d.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("UnmarshalText() expected error for bogus input")
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
