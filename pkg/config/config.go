// Package config loads server configuration from an optional YAML file and
// the process environment. Environment variables win over file values.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// Config holds application configuration. The GitHub credential itself is
// deliberately not here: the client factory reads GITHUB_TOKEN at call time so
// rotation takes effect without a restart.
type Config struct {
	Port int `yaml:"port"`

	// Listing behavior.
	RepoCap  int `yaml:"repo_cap"`
	PageSize int `yaml:"page_size"`
	RunLimit int `yaml:"run_limit"`

	// Health probe throttle in seconds.
	ProbeIntervalSeconds int `yaml:"probe_interval_seconds"`

	// Dashboard assets.
	TemplatesGlob string `yaml:"templates_glob"`
	StaticDir     string `yaml:"static_dir"`

	// Optional Postgres-backed selection store; memory is used when DBHost
	// is empty.
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`
}

// Load builds the configuration: defaults, then the YAML file at path (if
// any), then environment variables.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Port:                 8000,
		RepoCap:              200,
		PageSize:             100,
		RunLimit:             5,
		ProbeIntervalSeconds: 300,
		TemplatesGlob:        "templates/*",
		StaticDir:            "static",
		DBPort:               "5432",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setIntFromEnv(&cfg.Port, "PORT")
	setIntFromEnv(&cfg.RepoCap, "REPO_CAP")
	setIntFromEnv(&cfg.PageSize, "PAGE_SIZE")
	setIntFromEnv(&cfg.RunLimit, "RUN_LIMIT")
	setIntFromEnv(&cfg.ProbeIntervalSeconds, "PROBE_INTERVAL_SECONDS")

	setFromEnv(&cfg.TemplatesGlob, "TEMPLATES_GLOB")
	setFromEnv(&cfg.StaticDir, "STATIC_DIR")

	setFromEnv(&cfg.DBHost, "DB_HOST")
	setFromEnv(&cfg.DBPort, "DB_PORT")
	setFromEnv(&cfg.DBUser, "DB_USER")
	setFromEnv(&cfg.DBPassword, "DB_PASSWORD")
	setFromEnv(&cfg.DBName, "DB_NAME")
}

// HasDatabase reports whether the Postgres selection store is configured.
func (c *Config) HasDatabase() bool {
	return c.DBHost != ""
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setIntFromEnv(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
