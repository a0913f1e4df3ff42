package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/zeebo/blake3"
)

// Config holds all configuration options for mentor.
type Config struct {
	// Analysis settings
	Analysis AnalysisConfig `koanf:"analysis" toml:"analysis"`

	// Rule selection
	Rules RulesConfig `koanf:"rules" toml:"rules"`

	// Thresholds for analysis decisions
	Thresholds ThresholdConfig `koanf:"thresholds" toml:"thresholds"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude"`

	// Cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`
}

// AnalysisConfig controls how files are processed.
type AnalysisConfig struct {
	Workers     int   `koanf:"workers" toml:"workers"`             // 0 = 2x NumCPU
	MaxFileSize int64 `koanf:"max_file_size" toml:"max_file_size"` // bytes, 0 = no limit
}

// RulesConfig selects which diagnostic rules run. An empty Enabled list
// means all registered rules; Disabled is subtracted afterwards.
type RulesConfig struct {
	Enabled  []string `koanf:"enabled" toml:"enabled"`
	Disabled []string `koanf:"disabled" toml:"disabled"`
}

// ThresholdConfig defines analysis thresholds.
type ThresholdConfig struct {
	DuplicateSimilarity float64 `koanf:"duplicate_similarity" toml:"duplicate_similarity"`
	DuplicateMinGroup   int     `koanf:"duplicate_min_group" toml:"duplicate_min_group"`
}

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
	Format  string `koanf:"format" toml:"format"` // text, json, yaml, toon
	Color   bool   `koanf:"color" toml:"color"`
	Verbose bool   `koanf:"verbose" toml:"verbose"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Workers:     0,
			MaxFileSize: 0,
		},
		Thresholds: ThresholdConfig{
			DuplicateSimilarity: 0.8,
			DuplicateMinGroup:   2,
		},
		Exclude: ExcludeConfig{
			Patterns: []string{
				"*_pb2.py",
				"*_pb2_grpc.py",
			},
			Dirs: []string{
				".git",
				".mentor",
				"__pycache__",
				".venv",
				"venv",
				".tox",
				".eggs",
				"site-packages",
				"build",
				"dist",
			},
			Gitignore: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".mentor/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format:  "text",
			Color:   true,
			Verbose: false,
		},
	}
}

// Load loads configuration from a file and validates it.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = kjson.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// configNames are the file names searched by FindConfig, in precedence order.
var configNames = []string{
	".mentor.toml",
	"mentor.toml",
	".mentor.yaml",
	"mentor.yaml",
	".mentor.yml",
	"mentor.yml",
	".mentor.json",
	"mentor.json",
}

// FindConfig returns the first config file found in the standard locations,
// or an empty string when none exists.
func FindConfig() string {
	searchDirs := []string{".", ".mentor"}

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

// LoadOrDefault loads config from the standard locations or returns defaults.
func LoadOrDefault() *Config {
	if path := FindConfig(); path != "" {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	return DefaultConfig()
}

// Validate checks threshold ranges and enum values.
func (c *Config) Validate() error {
	if s := c.Thresholds.DuplicateSimilarity; s < 0 || s > 1 {
		return fmt.Errorf("thresholds.duplicate_similarity must be between 0 and 1, got %g", s)
	}
	if g := c.Thresholds.DuplicateMinGroup; g < 2 {
		return fmt.Errorf("thresholds.duplicate_min_group must be at least 2, got %d", g)
	}
	if c.Analysis.Workers < 0 {
		return fmt.Errorf("analysis.workers must not be negative, got %d", c.Analysis.Workers)
	}
	if c.Analysis.MaxFileSize < 0 {
		return fmt.Errorf("analysis.max_file_size must not be negative, got %d", c.Analysis.MaxFileSize)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %d", c.Cache.TTL)
	}
	switch c.Output.Format {
	case "text", "json", "yaml", "toon":
	default:
		return fmt.Errorf("output.format must be one of text, json, yaml, toon; got %q", c.Output.Format)
	}
	return nil
}

// Fingerprint returns a short stable hash of the effective configuration.
// Cached results keyed by it are invalidated when any setting changes.
func (c *Config) Fingerprint() string {
	data, err := json.Marshal(c)
	if err != nil {
		return "unknown"
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// ActiveRules resolves the configured rule selection against the full set
// of registered rule IDs. Order follows the input slice.
func (c *Config) ActiveRules(all []string) []string {
	enabled := all
	if len(c.Rules.Enabled) > 0 {
		enabled = c.Rules.Enabled
	}
	if len(c.Rules.Disabled) == 0 {
		return enabled
	}

	skip := make(map[string]bool, len(c.Rules.Disabled))
	for _, id := range c.Rules.Disabled {
		skip[id] = true
	}
	kept := make([]string, 0, len(enabled))
	for _, id := range enabled {
		if !skip[id] {
			kept = append(kept, id)
		}
	}
	return kept
}

// ShouldExclude checks if a path should be excluded from analysis.
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
