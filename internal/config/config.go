// Package config loads tokengraph's TOML configuration file.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jward/tokengraph/internal/lang"
)

// DefaultDBPath is used when neither the file nor a flag names a database.
const DefaultDBPath = ".tokengraph/index.db"

type Config struct {
	Index   Index   `toml:"index"`
	DB      DB      `toml:"db"`
	Log     Log     `toml:"log"`
	Metrics Metrics `toml:"metrics"`
}

type Index struct {
	Languages  []string `toml:"languages"`
	Parallel   *bool    `toml:"parallel"`
	Workers    int      `toml:"workers"`
	NodeBudget int      `toml:"node_budget"`
	SkipDirs   []string `toml:"skip_dirs"`
}

type DB struct {
	Path string `toml:"path"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type Metrics struct {
	Textfile string `toml:"textfile"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads, defaults and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := validateIndex(&cfg); err != nil {
		return nil, err
	}
	if err := validateLog(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Index.Parallel == nil {
		enabled := true
		cfg.Index.Parallel = &enabled
	}
	if cfg.Index.Workers <= 0 {
		cfg.Index.Workers = runtime.NumCPU()
	}
	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = DefaultDBPath
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "warn"
	}
	if strings.TrimSpace(cfg.Log.Format) == "" {
		cfg.Log.Format = "text"
	}
	for i, l := range cfg.Index.Languages {
		cfg.Index.Languages[i] = strings.ToLower(strings.TrimSpace(l))
	}
}

func validateIndex(cfg *Config) error {
	if cfg.Index.NodeBudget < 0 {
		return fmt.Errorf("index.node_budget must be >= 0, got %d", cfg.Index.NodeBudget)
	}
	supported := make(map[string]bool)
	for _, name := range lang.Names() {
		supported[name] = true
	}
	for _, l := range cfg.Index.Languages {
		if !supported[l] {
			return fmt.Errorf("index.languages: unsupported language %q (supported: %s)",
				l, strings.Join(lang.Names(), ", "))
		}
	}
	return nil
}

func validateLog(cfg *Config) error {
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", cfg.Log.Level)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", cfg.Log.Format)
	}
	return nil
}
