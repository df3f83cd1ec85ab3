// Package config provides configuration loading and defaults for the respack
// build tools.
//
// Configuration is loaded from respack.toml in the project directory. The
// package covers bank map generation budgets, usage statistics sources,
// text image composition, and logging, with defaults matching the reference
// sound bank.
package config

//go:generate go run ../../cmd/genconfig

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"

	"respack/internal/atomicfile"
	"respack/internal/bankmap"
	"respack/internal/migrate"
	"respack/internal/paths"
)

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level application configuration.
type Config struct {
	// Version is the config schema version used for migrations.
	Version int `toml:"version"`
	// Bankmap holds substitution map generation settings.
	Bankmap BankmapConfig `toml:"bankmap"`
	// Stats holds usage statistics source settings.
	Stats StatsConfig `toml:"stats"`
	// Textimg holds text image composition settings.
	Textimg TextimgConfig `toml:"textimg"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
}

// BankmapConfig holds substitution map generation settings.
type BankmapConfig struct {
	// Bank is the bank file path. Empty selects the built-in reference bank.
	Bank string `toml:"bank"`
	// Out is the output path for the generated substitution map.
	Out string `toml:"out"`
	// BudgetsKB lists the memory budgets, in KB, one output column each.
	BudgetsKB []int `toml:"budgets_kb"`
	// ReserveBytes is subtracted from every budget before selection to
	// leave room for playback engine state.
	ReserveBytes int64 `toml:"reserve_bytes"`
	// MelodicCount is the number of leading melodic instrument slots.
	MelodicCount int `toml:"melodic_count"`
	// ReservedPercussion is the number of percussion slots that stay
	// silent in the source material and are excluded from the usage mean.
	ReservedPercussion int `toml:"reserved_percussion"`
}

// StatsConfig holds usage statistics source settings.
type StatsConfig struct {
	// Source selects the usage counts source: "bank", "file", or "url".
	// Empty follows the bank file's own usage section.
	Source string `toml:"source"`
	// File is the local JSON file path for source "file".
	File string `toml:"file,omitempty"`
	// URL is the endpoint for source "url".
	URL string `toml:"url,omitempty"`
}

// TextimgConfig holds text image composition settings.
type TextimgConfig struct {
	// Tool is the external compositor binary ("magick" or a full path).
	Tool string `toml:"tool"`
	// Scripts lists glob patterns, project-relative, selecting script files.
	Scripts []string `toml:"scripts"`
	// OutDir prefixes write paths in scripts. Empty writes relative to the
	// project root.
	OutDir string `toml:"out_dir"`
	// TimeoutSeconds bounds each compositor invocation.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: migrate.Config.CurrentVersion,
		Bankmap: BankmapConfig{
			Bank:               "",
			Out:                paths.DefaultMapFile,
			BudgetsKB:          []int{256, 512, 768, 1024},
			ReserveBytes:       bankmap.DefaultReserveBytes,
			MelodicCount:       bankmap.DefaultMelodicCount,
			ReservedPercussion: bankmap.DefaultReservedPercussion,
		},
		Stats: StatsConfig{
			Source: "",
		},
		Textimg: TextimgConfig{
			Tool:           "magick",
			Scripts:        []string{"text/*.txt"},
			OutDir:         "",
			TimeoutSeconds: 30,
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// ///////////////////////////////////////////////
// Example Configuration
// ///////////////////////////////////////////////

// ExampleConfig returns a Config suitable for generating respack.default.toml.
// For this project all defaults are good examples.
func ExampleConfig() *Config {
	return DefaultConfig()
}

// ///////////////////////////////////////////////
// PeekVersion
// ///////////////////////////////////////////////

// PeekVersion reads just the version field from raw TOML bytes.
// Returns 1 if the version field is missing or zero.
func PeekVersion(data []byte) int {
	var v struct {
		Version int `toml:"version"`
	}
	if err := toml.Unmarshal(data, &v); err != nil {
		return 1
	}
	if v.Version == 0 {
		return 1
	}
	return v.Version
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads and parses the configuration file from projectDir/respack.toml.
// If the file doesn't exist, returns DefaultConfig.
func Load(projectDir string) (*Config, error) {
	return LoadFile(filepath.Join(projectDir, paths.ConfigFile))
}

// LoadFile reads and parses the configuration file at an explicit path,
// with the same missing-file and migration behavior as [Load].
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	version := PeekVersion(data)

	// Apply migrations if needed
	migrated := version != migrate.Config.CurrentVersion
	if migrated {
		// Write backup before migration
		if backupErr := os.WriteFile(path+".bak", data, 0o644); backupErr != nil {
			slog.Warn("failed to write config backup", "error", backupErr)
		}
		var migrateErr error
		data, _, migrateErr = migrate.Config.Run(data, version)
		if migrateErr != nil {
			return nil, fmt.Errorf("migrate config: %w", migrateErr)
		}
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Version = migrate.Config.CurrentVersion

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// Re-save after migration
	if migrated {
		if err := cfg.Save(path); err != nil {
			slog.Warn("failed to save migrated config", "error", err)
		}
	}

	return cfg, nil
}

// Save writes the config to disk as TOML using atomic file write.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return atomicfile.Write(path, buf.Bytes(), 0o644)
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that all configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Bankmap.Out == "" {
		return fmt.Errorf("bankmap.out must not be empty")
	}

	if len(c.Bankmap.BudgetsKB) == 0 {
		return fmt.Errorf("bankmap.budgets_kb must list at least one budget")
	}
	for i, kb := range c.Bankmap.BudgetsKB {
		if kb <= 0 {
			return fmt.Errorf("bankmap.budgets_kb[%d] = %d, must be > 0", i, kb)
		}
		if i > 0 && kb <= c.Bankmap.BudgetsKB[i-1] {
			return fmt.Errorf("bankmap.budgets_kb must be strictly increasing, got %d after %d", kb, c.Bankmap.BudgetsKB[i-1])
		}
	}

	if c.Bankmap.ReserveBytes < 0 {
		return fmt.Errorf("bankmap.reserve_bytes must be >= 0, got %d", c.Bankmap.ReserveBytes)
	}
	if c.Bankmap.MelodicCount < 0 {
		return fmt.Errorf("bankmap.melodic_count must be >= 0, got %d", c.Bankmap.MelodicCount)
	}
	if c.Bankmap.ReservedPercussion < 0 {
		return fmt.Errorf("bankmap.reserved_percussion must be >= 0, got %d", c.Bankmap.ReservedPercussion)
	}

	switch c.Stats.Source {
	case "", "bank", "file", "url":
	default:
		return fmt.Errorf("invalid stats.source %q: must be bank, file, or url (or empty to follow the bank)", c.Stats.Source)
	}
	if c.Stats.Source == "file" && c.Stats.File == "" {
		return fmt.Errorf("stats.source is \"file\" but stats.file is empty")
	}
	if c.Stats.Source == "url" && c.Stats.URL == "" {
		return fmt.Errorf("stats.source is \"url\" but stats.url is empty")
	}

	if c.Textimg.Tool == "" {
		return fmt.Errorf("textimg.tool must not be empty")
	}
	if c.Textimg.TimeoutSeconds <= 0 {
		return fmt.Errorf("textimg.timeout_seconds must be > 0, got %d", c.Textimg.TimeoutSeconds)
	}
	for _, pattern := range c.Textimg.Scripts {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid textimg.scripts pattern %q", pattern)
		}
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, or error", c.Log.Level)
	}
	if c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be > 0, got %d", c.Log.MaxSizeMB)
	}

	return nil
}

// ///////////////////////////////////////////////
// Derived Values
// ///////////////////////////////////////////////

// BankmapOptions maps the config onto the prioritizer's option set.
func (c *Config) BankmapOptions() bankmap.Options {
	return bankmap.Options{
		ReserveBytes:       c.Bankmap.ReserveBytes,
		MelodicCount:       c.Bankmap.MelodicCount,
		ReservedPercussion: c.Bankmap.ReservedPercussion,
	}
}

// BudgetsBytes returns the configured budgets converted from KB to bytes.
func (c *Config) BudgetsBytes() []int64 {
	out := make([]int64, len(c.Bankmap.BudgetsKB))
	for i, kb := range c.Bankmap.BudgetsKB {
		out[i] = int64(kb) * 1024
	}
	return out
}

// Summary returns a one-line description of the effective settings for
// startup logging.
func (c *Config) Summary() string {
	bank := c.Bankmap.Bank
	if bank == "" {
		bank = "embedded"
	}
	source := c.Stats.Source
	if source == "" {
		source = "bank-defined"
	}
	kbs := make([]string, len(c.Bankmap.BudgetsKB))
	for i, kb := range c.Bankmap.BudgetsKB {
		kbs[i] = fmt.Sprintf("%d", kb)
	}
	return fmt.Sprintf("bank=%s budgets=%sKB out=%s stats=%s tool=%s log=%s",
		bank, strings.Join(kbs, "/"), c.Bankmap.Out, source, c.Textimg.Tool, c.Log.Level)
}

// ScriptPaths expands the configured script globs against the project root.
// Patterns use forward slashes. The result is sorted and deduplicated;
// patterns that match nothing contribute nothing.
func (c *Config) ScriptPaths(root string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, pattern := range c.Textimg.Scripts {
		matches, err := doublestar.Glob(os.DirFS(root), pattern)
		if err != nil {
			return nil, fmt.Errorf("script pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			full := filepath.Join(root, filepath.FromSlash(m))
			if !seen[full] {
				seen[full] = true
				out = append(out, full)
			}
		}
	}
	slices.Sort(out)
	return out, nil
}

// ///////////////////////////////////////////////
// Formatting Helpers
// ///////////////////////////////////////////////

// FormatBytes formats a byte count in abbreviated form: 1.5 MB, 234.2 KB, 500 B.
// Exact multiples omit the decimal: 262144 → "256 KB".
func FormatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		val := float64(n) / (1 << 20)
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d MB", int64(val))
		}
		return fmt.Sprintf("%.1f MB", val)
	case n >= 1<<10:
		val := float64(n) / (1 << 10)
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d KB", int64(val))
		}
		return fmt.Sprintf("%.1f KB", val)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
