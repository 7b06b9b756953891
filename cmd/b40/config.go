package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the b40 configuration file (~/.config/b40/config.yaml).
// Numeric fields are pointers so "not set" and zero stay distinguishable.
type Config struct {
	// Engine tuning defaults
	ThreadsPerBlock   *int64 `yaml:"threads_per_block"`
	ElementsPerThread *int64 `yaml:"elements_per_thread"`
	MaxGridSize       *int64 `yaml:"max_grid_size"`
	Policy            string `yaml:"policy"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "b40", "config.yaml")
}

// applyEngineConfig applies config file defaults to the engine tuning
// variables when the corresponding CLI flag was not explicitly set.
func applyEngineConfig(c *cli.Command, cfg Config) {
	if cfg.ThreadsPerBlock != nil && !c.IsSet("threads-per-block") && !c.IsSet("tpb") {
		threadsPerBlock = *cfg.ThreadsPerBlock
	}
	if cfg.ElementsPerThread != nil && !c.IsSet("elements-per-thread") && !c.IsSet("ept") {
		elementsPerThread = *cfg.ElementsPerThread
	}
	if cfg.MaxGridSize != nil && !c.IsSet("max-grid") {
		maxGridSize = *cfg.MaxGridSize
	}
	if cfg.Policy != "" && !c.IsSet("policy") {
		gridPolicy = cfg.Policy
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	applyEngineConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}

// LoadConfig reads the config file. Returns a zero Config if the file
// doesn't exist or fails to parse.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
