package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration options for thisifier.
type Config struct {
	// Qualifier inserted before self-calls
	Qualifier QualifierConfig `koanf:"qualifier" toml:"qualifier"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude"`

	// Cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`

	// Watch mode settings
	Watch WatchConfig `koanf:"watch" toml:"watch"`

	// Resource limits
	Limits LimitsConfig `koanf:"limits" toml:"limits"`

	// Logging
	Log LogConfig `koanf:"log" toml:"log"`
}

// QualifierConfig controls the inserted receiver.
type QualifierConfig struct {
	// Style is "this" (this.call()) or "type" (Enclosing.this.call()).
	Style string `koanf:"style" toml:"style"`
}

// Qualifier styles.
const (
	StyleThis = "this"
	StyleType = "type"
)

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns  []string `koanf:"patterns" toml:"patterns"`
	Dirs      []string `koanf:"dirs" toml:"dirs"`
	Gitignore bool     `koanf:"gitignore" toml:"gitignore"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format string `koanf:"format" toml:"format"` // text, json, markdown, toon
	Color  bool   `koanf:"color" toml:"color"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	DebounceMS int `koanf:"debounce_ms" toml:"debounce_ms"`
}

// LimitsConfig bounds the work done per file.
type LimitsConfig struct {
	MaxFileSize int64 `koanf:"max_file_size" toml:"max_file_size"` // bytes, 0 disables the limit
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `koanf:"level" toml:"level"`   // debug, info, warn, error
	Format string `koanf:"format" toml:"format"` // text, json
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Qualifier: QualifierConfig{
			Style: StyleThis,
		},
		Exclude: ExcludeConfig{
			Patterns: []string{
				"package-info.java",
				"module-info.java",
				"*_generated.java",
			},
			Dirs: []string{
				".git",
				".thisifier",
				"build",
				"target",
				"out",
				".gradle",
				".idea",
				"node_modules",
			},
			Gitignore: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".thisifier/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
		Watch: WatchConfig{
			DebounceMS: 300,
		},
		Limits: LimitsConfig{
			MaxFileSize: 1 << 20,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// parserFor picks the koanf parser from a file extension, defaulting to TOML.
func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	case ".json":
		return json.Parser()
	default:
		return toml.Parser()
	}
}

// Load loads configuration from a file on top of the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
		return nil, err
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// configNames are the file names searched for, in priority order.
var configNames = []string{
	"thisifier.toml",
	"thisifier.yaml",
	"thisifier.yml",
	"thisifier.json",
	".thisifier.toml",
	".thisifier.yaml",
	".thisifier.yml",
	".thisifier.json",
}

// searchDirs are searched relative to the working directory.
var searchDirs = []string{".", ".thisifier"}

// Find returns the first config file present in the standard locations, or "".
func Find() string {
	for _, dir := range searchDirs {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// LoadOrDefault tries to load config from standard locations or returns defaults.
func LoadOrDefault() *Config {
	if path := Find(); path != "" {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	return DefaultConfig()
}

// LoadResult is a loaded configuration and the file it came from.
type LoadResult struct {
	Config *Config
	Source string // empty when no file was found
}

type loadOptions struct {
	path string
}

// LoadOption customizes LoadConfig.
type LoadOption func(*loadOptions)

// WithPath loads the given file instead of searching the standard locations.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) { o.path = path }
}

// LoadConfig loads and validates configuration. Unlike LoadOrDefault it
// reports errors in the file it found instead of silently using defaults.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	path := o.path
	if path == "" {
		path = Find()
	}
	if path == "" {
		return &LoadResult{Config: DefaultConfig()}, nil
	}

	if err := ValidateFile(path); err != nil {
		return nil, err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &LoadResult{Config: cfg, Source: path}, nil
}

// Validate checks values the schema cannot express.
func (c *Config) Validate() error {
	var errs []error
	if s := c.Qualifier.Style; s != StyleThis && s != StyleType {
		errs = append(errs, fmt.Errorf("qualifier.style %q: want %q or %q", s, StyleThis, StyleType))
	}
	for _, pattern := range c.Exclude.Patterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			errs = append(errs, fmt.Errorf("exclude.patterns %q: %w", pattern, err))
		}
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must not be negative, got %d", c.Cache.TTL))
	}
	if c.Watch.DebounceMS < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce_ms must not be negative, got %d", c.Watch.DebounceMS))
	}
	if c.Limits.MaxFileSize < 0 {
		errs = append(errs, fmt.Errorf("limits.max_file_size must not be negative, got %d", c.Limits.MaxFileSize))
	}
	return errors.Join(errs...)
}

// ShouldExclude checks if a path should be excluded from processing.
func (c *Config) ShouldExclude(path string) bool {
	// Check directory exclusions
	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(path, string(filepath.Separator)+dir+string(filepath.Separator)) ||
			strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}

	// Check pattern exclusions
	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	return false
}
