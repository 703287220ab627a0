// Package config loads the optional YAML configuration controlling state
// location, cache lifetimes and network behavior.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration. Every field has a usable
// default, a config file is optional.
type Config struct {
	State struct {
		Dir string `yaml:"dir" json:"dir" jsonschema:"description=Directory for caches and feed mirrors (default: user cache dir)"`
	} `yaml:"state" json:"state" jsonschema:"description=Local state location"`

	Cache struct {
		DirListTTL time.Duration `yaml:"dir_list_ttl" json:"dir_list_ttl" jsonschema:"default=3h,description=Lifetime of a cached directory file list"`
		FeedTTL    time.Duration `yaml:"feed_ttl" json:"feed_ttl" jsonschema:"default=3h,description=Time between feed re-polls"`
	} `yaml:"cache" json:"cache" jsonschema:"description=Cache lifetimes"`

	HTTP struct {
		Timeout   time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=10s,description=Per-request HTTP timeout"`
		UserAgent string        `yaml:"user_agent" json:"user_agent" jsonschema:"description=User agent sent with feed and image requests"`
	} `yaml:"http" json:"http" jsonschema:"description=Network settings"`

	Select struct {
		MaxAttempts int `yaml:"max_attempts" json:"max_attempts" jsonschema:"default=50,description=Random draws before giving up on size filtering"`
	} `yaml:"select" json:"select" jsonschema:"description=Selection settings"`

	Locate struct {
		Binary string `yaml:"binary" json:"binary" jsonschema:"default=locate,description=locate(1) binary used as enumeration accelerator"`
	} `yaml:"locate" json:"locate" jsonschema:"description=Index accelerator settings"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from a YAML file, expanding environment
// variables, and fills in defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.State.Dir == "" {
		if base, err := os.UserCacheDir(); err == nil {
			c.State.Dir = filepath.Join(base, "randpic")
		} else {
			c.State.Dir = filepath.Join(os.TempDir(), "randpic")
		}
	}
	if c.Cache.DirListTTL == 0 {
		c.Cache.DirListTTL = 3 * time.Hour
	}
	if c.Cache.FeedTTL == 0 {
		c.Cache.FeedTTL = 3 * time.Hour
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = 10 * time.Second
	}
	// HTTP.UserAgent stays empty by default, the caller substitutes its
	// versioned identity
	if c.Select.MaxAttempts == 0 {
		c.Select.MaxAttempts = 50
	}
	if c.Locate.Binary == "" {
		c.Locate.Binary = "locate"
	}
}

func validate(cfg *Config) error {
	if cfg.HTTP.Timeout < time.Second {
		return fmt.Errorf("http.timeout must be at least 1 second")
	}
	if cfg.Select.MaxAttempts < 1 {
		return fmt.Errorf("select.max_attempts must be at least 1")
	}
	if cfg.Cache.DirListTTL < 0 || cfg.Cache.FeedTTL < 0 {
		return fmt.Errorf("cache lifetimes must be non-negative")
	}
	return nil
}
