package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds process settings. It is read once at start-up from an
// optional YAML file and then from the environment, which wins.
type Config struct {
	Port   string `yaml:"port"`
	DBPath string `yaml:"db_path"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// RateLimit is the number of intents a client IP may post per minute.
	RateLimit int `yaml:"rate_limit"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	S3 S3 `yaml:"s3"`
}

// S3 configures the backup bucket. Backups stay disabled while Bucket or
// either key is empty.
type S3 struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Prefix    string `yaml:"prefix"`
}

func defaults() *Config {
	return &Config{
		Port:            "8080",
		DBPath:          "shoplist.db",
		LogLevel:        "info",
		LogFormat:       "text",
		RateLimit:       120,
		ShutdownTimeout: 10 * time.Second,
		S3:              S3{Prefix: "shoplist"},
	}
}

// Load builds the Config. SHOPLIST_CONFIG may name a YAML file whose values
// replace the defaults; SHOPLIST_* variables then override individual keys.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("SHOPLIST_CONFIG"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnvString("SHOPLIST_PORT", cfg.Port)
	cfg.DBPath = getEnvString("SHOPLIST_DB_PATH", cfg.DBPath)
	cfg.LogLevel = getEnvString("SHOPLIST_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvString("SHOPLIST_LOG_FORMAT", cfg.LogFormat)
	cfg.RateLimit = getEnvInt("SHOPLIST_RATE_LIMIT", cfg.RateLimit)
	cfg.ShutdownTimeout = getEnvDuration("SHOPLIST_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	cfg.S3.Endpoint = getEnvString("SHOPLIST_S3_ENDPOINT", cfg.S3.Endpoint)
	cfg.S3.Bucket = getEnvString("SHOPLIST_S3_BUCKET", cfg.S3.Bucket)
	cfg.S3.Region = getEnvString("SHOPLIST_S3_REGION", cfg.S3.Region)
	cfg.S3.AccessKey = getEnvString("SHOPLIST_S3_ACCESS_KEY", cfg.S3.AccessKey)
	cfg.S3.SecretKey = getEnvString("SHOPLIST_S3_SECRET_KEY", cfg.S3.SecretKey)
	cfg.S3.Prefix = getEnvString("SHOPLIST_S3_PREFIX", cfg.S3.Prefix)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("db path must not be empty")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative, got %d", c.RateLimit)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// BackupsEnabled reports whether enough S3 settings are present to run backups.
func (c *Config) BackupsEnabled() bool {
	return c.S3.Bucket != "" && c.S3.AccessKey != "" && c.S3.SecretKey != ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
