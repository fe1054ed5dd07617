package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
}

func TestLoadFromFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[output]
format = "WEBP"
quality = 75

[catalog]
banned_sets = ["leg"]

[catalog.blessings]
"Lightning Bolt" = "m10"

[log]
level = "warning"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Output.Format != "webp" || cfg.Output.Quality != 75 {
		t.Errorf("Unexpected output section %+v", cfg.Output)
	}
	if cfg.Output.Width != 816 || cfg.Output.Border != 36 {
		t.Errorf("Expected missing keys to keep defaults, got %+v", cfg.Output)
	}
	if len(cfg.Catalog.BannedSets) != 1 || cfg.Catalog.BannedSets[0] != "leg" {
		t.Errorf("Unexpected banned sets %v", cfg.Catalog.BannedSets)
	}
	if cfg.Catalog.Blessings["Lightning Bolt"] != "m10" {
		t.Errorf("Unexpected blessings %v", cfg.Catalog.Blessings)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Expected level alias to normalize, got %q", cfg.Log.Level)
	}
	if cfg.Run.Workers != 4 {
		t.Errorf("Expected default workers, got %d", cfg.Run.Workers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Loaded config should be valid: %v", err)
	}
}

func TestLoadFromFileInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[output\nformat ="), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("Expected parse error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Output.Format != "png" {
		t.Errorf("Expected defaults, got %+v", cfg.Output)
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Run.Workers = 9
	cfg.Catalog.BannedCards = map[string][]string{"leg": {"Lightning Bolt"}}

	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}
	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Run.Workers != 9 {
		t.Errorf("Expected workers 9, got %d", loaded.Run.Workers)
	}
	if got := loaded.Catalog.BannedCards["leg"]; len(got) != 1 || got[0] != "Lightning Bolt" {
		t.Errorf("Unexpected banned cards %v", loaded.Catalog.BannedCards)
	}
}

func TestSaveToFileReportsErrors(t *testing.T) {
	dir := t.TempDir()
	// a directory in place of the file makes the create fail
	path := filepath.Join(dir, "config.toml")
	if err := os.Mkdir(path, 0755); err != nil {
		t.Fatal(err)
	}
	if err := Default().SaveToFile(path); err == nil {
		t.Error("Expected error saving over a directory")
	}

	if _, err := os.Stat("/dev/full"); err == nil {
		if err := Default().SaveToFile("/dev/full"); err == nil {
			t.Error("Expected write error on a full device")
		}
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"quality", func(c *Config) { c.Output.Quality = 0 }, "output.quality"},
		{"format", func(c *Config) { c.Output.Format = "bmp" }, "output.format"},
		{"workers", func(c *Config) { c.Run.Workers = 0 }, "run.workers"},
		{"order", func(c *Config) { c.Catalog.Order = "random" }, "catalog.order"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"cache path", func(c *Config) { c.Cache.Path = "" }, "cache.path"},
		{"backend", func(c *Config) { c.Audit.Backend = "openai" }, "audit.backend"},
		{"placeholders", func(c *Config) { c.Images.PrimaryURL = "https://example.com/card.png" }, "images.primary_url"},
		{"border", func(c *Config) { c.Output.Border = 600 }, "output.border"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error to mention %q, got %v", tt.want, err)
			}
		})
	}
}

func TestCacheDisabledNeedsNoPath(t *testing.T) {
	cfg := Default()
	cfg.Cache.Enabled = false
	cfg.Cache.Path = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected disabled cache without path to validate: %v", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := GetConfigPath(); got != filepath.Join("/tmp/xdg", "cardmask", "config.toml") {
		t.Errorf("GetConfigPath() = %q", got)
	}
}
