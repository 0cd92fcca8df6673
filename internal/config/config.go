// Package config loads techpm settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultStoreKey is the key the persisted snapshot lives under
const DefaultStoreKey = "tech_pm_store_v3"

// Config is the complete runtime configuration
type Config struct {
	StatePath   string    `yaml:"state_path"`
	Debug       bool      `yaml:"debug"`
	Journal     bool      `yaml:"journal"`
	MetricsAddr string    `yaml:"metrics_addr"`
	Storage     Storage   `yaml:"storage"`
	Artifacts   Artifacts `yaml:"artifacts"`
	Notify      Notify    `yaml:"notify"`
	Timer       Timer     `yaml:"timer"`
}

// Storage selects the key-value medium holding the persisted snapshot
type Storage struct {
	Driver string `yaml:"driver"` // file, sqlite, sqlite3, postgres, memory
	DSN    string `yaml:"dsn"`    // database path or postgres URL; file driver: directory
	Key    string `yaml:"key"`
}

// Artifacts selects where exports are written
type Artifacts struct {
	Driver string `yaml:"driver"` // fs or s3
	Root   string `yaml:"root"`
	S3     S3     `yaml:"s3"`
}

// S3 holds bucket settings for the s3 artifact driver
type S3 struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Prefix          string `yaml:"prefix"`
}

// Notify selects the notification capability
type Notify struct {
	Driver           string `yaml:"driver"` // log or discord
	DiscordToken     string `yaml:"discord_token"`
	DiscordChannelID string `yaml:"discord_channel_id"`
}

// Timer holds focus timer defaults
type Timer struct {
	DefaultMinutes int `yaml:"default_minutes"`
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		StatePath: "state",
		Journal:   true,
		Storage: Storage{
			Driver: "file",
			Key:    DefaultStoreKey,
		},
		Artifacts: Artifacts{Driver: "fs"},
		Notify:    Notify{Driver: "log"},
		Timer:     Timer{DefaultMinutes: 25},
	}
}

// Load reads path (if it exists) on top of the defaults, then applies
// TECHPM_* environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	cfg.fillDerived()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.EqualFold(v, "true") || v == "1"
		}
	}

	str("TECHPM_STATE_PATH", &cfg.StatePath)
	boolean("TECHPM_DEBUG", &cfg.Debug)
	boolean("TECHPM_JOURNAL", &cfg.Journal)
	str("TECHPM_METRICS_ADDR", &cfg.MetricsAddr)

	str("TECHPM_STORAGE_DRIVER", &cfg.Storage.Driver)
	str("TECHPM_STORAGE_DSN", &cfg.Storage.DSN)
	str("TECHPM_STORAGE_KEY", &cfg.Storage.Key)

	str("TECHPM_ARTIFACT_DRIVER", &cfg.Artifacts.Driver)
	str("TECHPM_ARTIFACT_ROOT", &cfg.Artifacts.Root)
	str("TECHPM_S3_BUCKET", &cfg.Artifacts.S3.Bucket)
	str("TECHPM_S3_REGION", &cfg.Artifacts.S3.Region)
	str("TECHPM_S3_ENDPOINT", &cfg.Artifacts.S3.Endpoint)
	boolean("TECHPM_S3_PATH_STYLE", &cfg.Artifacts.S3.PathStyle)
	str("TECHPM_S3_PREFIX", &cfg.Artifacts.S3.Prefix)
	str("AWS_ACCESS_KEY_ID", &cfg.Artifacts.S3.AccessKeyID)
	str("AWS_SECRET_ACCESS_KEY", &cfg.Artifacts.S3.SecretAccessKey)

	str("TECHPM_NOTIFY_DRIVER", &cfg.Notify.Driver)
	str("DISCORD_TOKEN", &cfg.Notify.DiscordToken)
	str("DISCORD_CHANNEL_ID", &cfg.Notify.DiscordChannelID)

	if v, ok := os.LookupEnv("TECHPM_TIMER_MINUTES"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Timer.DefaultMinutes = n
		}
	}
}

// fillDerived fills values that default relative to the state path
func (c *Config) fillDerived() {
	if c.StatePath == "" {
		c.StatePath = "state"
	}
	if c.Storage.Key == "" {
		c.Storage.Key = DefaultStoreKey
	}
	if c.Storage.DSN == "" {
		switch c.Storage.Driver {
		case "file":
			c.Storage.DSN = c.StatePath
		case "sqlite", "sqlite3":
			c.Storage.DSN = filepath.Join(c.StatePath, "techpm.db")
		}
	}
	if c.Artifacts.Driver == "fs" && c.Artifacts.Root == "" {
		c.Artifacts.Root = filepath.Join(c.StatePath, "exports")
	}
	if c.Timer.DefaultMinutes <= 0 {
		c.Timer.DefaultMinutes = 25
	}
}

// Validate rejects unknown drivers and incomplete driver settings
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "file", "sqlite", "sqlite3", "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Artifacts.Driver {
	case "fs":
	case "s3":
		if c.Artifacts.S3.Bucket == "" {
			return fmt.Errorf("artifacts.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown artifact driver %q", c.Artifacts.Driver)
	}

	switch c.Notify.Driver {
	case "log":
	case "discord":
		if c.Notify.DiscordToken == "" || c.Notify.DiscordChannelID == "" {
			return fmt.Errorf("discord notifications need DISCORD_TOKEN and DISCORD_CHANNEL_ID")
		}
	default:
		return fmt.Errorf("unknown notify driver %q", c.Notify.Driver)
	}
	return nil
}
