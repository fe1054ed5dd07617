package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/menta2k/cardmask/pkg/frame"
	"github.com/menta2k/cardmask/pkg/resolver"
)

// Config holds the application configuration
type Config struct {
	Catalog CatalogConfig `toml:"catalog"`
	Frame   FrameConfig   `toml:"frame"`
	Images  ImagesConfig  `toml:"images"`
	Cache   CacheConfig   `toml:"cache"`
	Output  OutputConfig  `toml:"output"`
	Run     RunConfig     `toml:"run"`
	Log     LogConfig     `toml:"log"`
	Audit   AuditConfig   `toml:"audit"`
}

// CatalogConfig points at the card database and its exclusions
type CatalogConfig struct {
	Path        string              `toml:"path" validate:"required"`
	URL         string              `toml:"url" validate:"omitempty,url"`
	BannedSets  []string            `toml:"banned_sets"`
	BannedCards map[string][]string `toml:"banned_cards"`
	Blessings   map[string]string   `toml:"blessings"`
	Order       string              `toml:"order" validate:"oneof=oldest newest"`
}

// FrameConfig lists the sets with special credit layouts
type FrameConfig struct {
	DarkSets     []string `toml:"dark_sets"`
	CenteredSets []string `toml:"centered_sets"`
	LeftSets     []string `toml:"left_sets"`
}

// ImagesConfig configures the scan providers
type ImagesConfig struct {
	PrimaryURL     string `toml:"primary_url" validate:"required"`
	SecondaryURL   string `toml:"secondary_url"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"gte=1,lte=600"`
	UserAgent      string `toml:"user_agent" validate:"required"`
}

// CacheConfig configures the downloaded scan cache
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path" validate:"required_if=Enabled true"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Dir     string `toml:"dir" validate:"required"`
	Format  string `toml:"format" validate:"oneof=png jpg webp"`
	Quality int    `toml:"quality" validate:"gte=1,lte=100"`
	Width   int    `toml:"width" validate:"gte=1"`
	Height  int    `toml:"height" validate:"gte=1"`
	Border  int    `toml:"border" validate:"gte=0"`
}

// RunConfig controls batch execution
type RunConfig struct {
	Workers int `toml:"workers" validate:"gte=1,lte=64"`
}

// LogConfig controls the logger
type LogConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=console json"`
}

// AuditConfig selects the vision model used by the audit command
type AuditConfig struct {
	Backend string `toml:"backend" validate:"oneof=ollama llamacpp"`
	URL     string `toml:"url" validate:"required,url"`
	Model   string `toml:"model"`
}

// Default returns a configuration with default values
func Default() *Config {
	frames := frame.DefaultConfig()
	return &Config{
		Catalog: CatalogConfig{
			Path:       "AllSets.json.zip",
			URL:        "https://mtgjson.com/json/AllSets.json.zip",
			BannedSets: append([]string(nil), resolver.DefaultBannedSets...),
			Order:      "oldest",
		},
		Frame: FrameConfig{
			DarkSets:     frames.DarkSets,
			CenteredSets: frames.CenteredSets,
			LeftSets:     frames.LeftSets,
		},
		Images: ImagesConfig{
			PrimaryURL:     "https://img.scryfall.com/cards/png/en/{set}/{id}.png",
			SecondaryURL:   "https://magiccards.info/scans/en/{set}/{id}.jpg",
			TimeoutSeconds: 30,
			UserAgent:      "cardmask/1.0",
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    filepath.Join("cache", "images.db"),
		},
		Output: OutputConfig{
			Dir:     "./output",
			Format:  "png",
			Quality: 90,
			Width:   816,
			Height:  1110,
			Border:  36,
		},
		Run: RunConfig{
			Workers: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Audit: AuditConfig{
			Backend: "ollama",
			URL:     "http://localhost:11434",
			Model:   "qwen2.5vl:7b",
		},
	}
}

// LoadFromFile loads configuration from a TOML file. Keys missing from the
// file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	config := Default()
	if _, err := toml.DecodeFile(filename, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.normalize()
	return config, nil
}

// Load reads filename when it exists and returns the defaults otherwise
func Load(filename string) (*Config, error) {
	if filename == "" {
		filename = GetConfigPath()
	}
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return LoadFromFile(filename)
}

// SaveToFile saves configuration to a TOML file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	if err := toml.NewEncoder(file).Encode(c); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close config file: %w", err)
	}
	return nil
}

func (c *Config) normalize() {
	c.Catalog.Order = strings.ToLower(strings.TrimSpace(c.Catalog.Order))
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	if c.Output.Format == "jpeg" {
		c.Output.Format = "jpg"
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Log.Level == "warning" {
		c.Log.Level = "warn"
	}
}

var validate = newValidator()

// newValidator reports fields by their TOML keys
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s fails %q", fieldPath(fe.Namespace()), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if !strings.Contains(c.Images.PrimaryURL, "{set}") || !strings.Contains(c.Images.PrimaryURL, "{id}") {
		return fmt.Errorf("images.primary_url must contain {set} and {id}")
	}
	if u := c.Images.SecondaryURL; u != "" && (!strings.Contains(u, "{set}") || !strings.Contains(u, "{id}")) {
		return fmt.Errorf("images.secondary_url must contain {set} and {id}")
	}
	if 2*c.Output.Border >= c.Output.Width || 2*c.Output.Border >= c.Output.Height {
		return fmt.Errorf("output.border must be smaller than half the output size")
	}
	for name, code := range c.Catalog.Blessings {
		if strings.TrimSpace(name) == "" || strings.TrimSpace(code) == "" {
			return fmt.Errorf("catalog.blessings entries need a card name and a set code")
		}
	}
	return nil
}

// fieldPath drops the root struct name from a validator namespace
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cardmask", "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.toml"
	}
	return filepath.Join(home, ".config", "cardmask", "config.toml")
}
