package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}

	if cfg.Qualifier.Style != StyleThis {
		t.Errorf("Qualifier.Style = %q, want this", cfg.Qualifier.Style)
	}

	// Check exclude defaults
	if !cfg.Exclude.Gitignore {
		t.Error("Exclude.Gitignore should be true by default")
	}
	if len(cfg.Exclude.Dirs) == 0 {
		t.Error("Exclude.Dirs should have default values")
	}

	// Check cache defaults
	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled should be true by default")
	}
	if cfg.Cache.TTL != 24 {
		t.Errorf("Cache.TTL = %d, want 24", cfg.Cache.TTL)
	}

	// Check output defaults
	if cfg.Output.Format != "text" {
		t.Errorf("Output.Format = %s, want text", cfg.Output.Format)
	}
	if !cfg.Output.Color {
		t.Error("Output.Color should be true by default")
	}

	if cfg.Watch.DebounceMS != 300 {
		t.Errorf("Watch.DebounceMS = %d, want 300", cfg.Watch.DebounceMS)
	}
	if cfg.Limits.MaxFileSize != 1<<20 {
		t.Errorf("Limits.MaxFileSize = %d, want %d", cfg.Limits.MaxFileSize, 1<<20)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() error: %v", err)
	}
}

func TestLoadTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "thisifier.toml")

	content := `
[qualifier]
style = "type"

[exclude]
dirs = ["build", "custom_exclude"]
patterns = ["*Generated.java"]

[cache]
enabled = false

[output]
format = "json"

[watch]
debounce_ms = 50
`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Qualifier.Style != StyleType {
		t.Errorf("Qualifier.Style = %q, want type", cfg.Qualifier.Style)
	}
	if len(cfg.Exclude.Dirs) != 2 || cfg.Exclude.Dirs[1] != "custom_exclude" {
		t.Errorf("Exclude.Dirs = %v", cfg.Exclude.Dirs)
	}
	if cfg.Cache.Enabled {
		t.Error("Cache.Enabled should be false")
	}
	if cfg.Output.Format != "json" {
		t.Errorf("Output.Format = %s, want json", cfg.Output.Format)
	}
	if cfg.Watch.DebounceMS != 50 {
		t.Errorf("Watch.DebounceMS = %d, want 50", cfg.Watch.DebounceMS)
	}
	// Untouched sections keep their defaults.
	if cfg.Cache.TTL != 24 {
		t.Errorf("Cache.TTL = %d, want 24", cfg.Cache.TTL)
	}
}

func TestLoadYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "thisifier.yaml")

	content := `
output:
  format: markdown
log:
  level: debug
  format: json
`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Output.Format != "markdown" {
		t.Errorf("Output.Format = %s, want markdown", cfg.Output.Format)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v, want debug/json", cfg.Log)
	}
}

func TestLoadJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "thisifier.json")

	content := `{
  "limits": {
    "max_file_size": 2048
  },
  "output": {
    "format": "toon"
  }
}`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Limits.MaxFileSize != 2048 {
		t.Errorf("Limits.MaxFileSize = %d, want 2048", cfg.Limits.MaxFileSize)
	}
	if cfg.Output.Format != "toon" {
		t.Errorf("Output.Format = %s, want toon", cfg.Output.Format)
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/thisifier.toml")
	if err == nil {
		t.Error("Load() should return error for non-existent file")
	}
}

func TestLoadInvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "thisifier.toml")

	// Invalid TOML
	content := `[qualifier
invalid toml`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() should return error for invalid config")
	}
}

func TestLoadRejectsUnknownStyle(t *testing.T) {
	tests := []struct {
		name  string
		style string
	}{
		{"dotted receiver", "Outer.this"},
		{"arbitrary expression", "other"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "thisifier.toml")
			content := "[qualifier]\nstyle = \"" + tt.style + "\"\n"
			if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
				t.Fatalf("Failed to write config file: %v", err)
			}

			_, err := Load(configPath)
			if err == nil || !strings.Contains(err.Error(), "qualifier.style") {
				t.Errorf("Load() error = %v, want qualifier.style error", err)
			}
		})
	}
}

func TestLoadRejectsReceiverToken(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "thisifier.toml")
	if err := os.WriteFile(configPath, []byte("[qualifier]\ntoken = \"Outer.this\"\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if err := ValidateFile(configPath); err == nil {
		t.Error("ValidateFile() should reject qualifier.token")
	}
}

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr bool
	}{
		{"valid toml", "c.toml", "[cache]\nttl = 5\n", false},
		{"valid yaml", "c.yaml", "watch:\n  debounce_ms: 10\n", false},
		{"unknown section", "c.toml", "[analysis]\ncomplexity = true\n", true},
		{"unknown key", "c.toml", "[cache]\nsize = 5\n", true},
		{"wrong type", "c.json", `{"cache": {"enabled": "yes"}}`, true},
		{"bad enum", "c.yaml", "output:\n  format: html\n", true},
		{"negative", "c.toml", "[limits]\nmax_file_size = -1\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write config file: %v", err)
			}
			err := ValidateFile(path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFile() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd)

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	result, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if result.Source != "" {
		t.Errorf("Source = %q, want empty", result.Source)
	}

	if err := os.WriteFile("bad.toml", []byte("[cache]\nbogus = 1\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	if _, err := LoadConfig(WithPath("bad.toml")); err == nil {
		t.Error("LoadConfig() should reject unknown keys")
	}

	if err := os.MkdirAll(".thisifier", 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(".thisifier", "thisifier.toml"), []byte("[cache]\nttl = 7\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	result, err = LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if result.Source != filepath.Join(".thisifier", "thisifier.toml") {
		t.Errorf("Source = %q", result.Source)
	}
	if result.Config.Cache.TTL != 7 {
		t.Errorf("Cache.TTL = %d, want 7", result.Config.Cache.TTL)
	}
}

func TestLoadOrDefault(t *testing.T) {
	// In a directory without config files, should return defaults
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd)

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	cfg := LoadOrDefault()
	if cfg == nil {
		t.Fatal("LoadOrDefault() returned nil")
	}

	if cfg.Watch.DebounceMS != 300 {
		t.Errorf("LoadOrDefault() returned non-default DebounceMS: %d", cfg.Watch.DebounceMS)
	}
}

func TestLoadOrDefaultWithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd)

	content := `
[watch]
debounce_ms = 999
`
	if err := os.WriteFile(filepath.Join(tmpDir, "thisifier.toml"), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	cfg := LoadOrDefault()
	if cfg.Watch.DebounceMS != 999 {
		t.Errorf("LoadOrDefault() should load from file, got DebounceMS=%d", cfg.Watch.DebounceMS)
	}
}

func TestShouldExclude(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		path string
		want bool
	}{
		// Excluded directories
		{"target/classes/App.java", true},
		{"build/generated/App.java", true},
		{".git/objects/file", true},

		// Excluded patterns
		{"src/main/java/com/acme/package-info.java", true},
		{"module-info.java", true},
		{"Parser_generated.java", true},

		// Not excluded
		{"App.java", false},
		{"src/main/java/com/acme/App.java", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := cfg.ShouldExclude(tt.path)
			if got != tt.want {
				t.Errorf("ShouldExclude(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestShouldExcludePathsWithSeparators(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join("module", "target", "App.java"), true},
		{filepath.Join("target", "App.java"), true},
		{filepath.Join("src", "App.java"), false},
		{filepath.Join("src", "target_utils", "App.java"), false}, // "target" in name, not directory
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := cfg.ShouldExclude(tt.path)
			if got != tt.want {
				t.Errorf("ShouldExclude(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
