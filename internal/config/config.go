// Package config loads the server configuration from a YAML file.
// Values may reference environment variables as ${NAME} or ${NAME:default};
// a .env file in the working directory is loaded first when present.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type (
	// Config is the root configuration of the chat server.
	Config struct {
		Server   ServerConfig   `yaml:"server"`
		Logger   LoggerConfig   `yaml:"logger"`
		Database DatabaseConfig `yaml:"database"`
		Redis    RedisConfig    `yaml:"redis"`
		Chat     ChatConfig     `yaml:"chat"`
		Upload   UploadConfig   `yaml:"upload"`
		Admin    AdminConfig    `yaml:"admin"`
		Metrics  MetricsConfig  `yaml:"metrics"`
	}

	ServerConfig struct {
		Addr           string        `yaml:"addr"`
		ReadTimeout    time.Duration `yaml:"read_timeout"`
		WriteTimeout   time.Duration `yaml:"write_timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"` // empty allows every origin
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level"`       // debug, info, warn, error
		Format     string `yaml:"format"`      // json, console
		Output     string `yaml:"output"`      // stdout, file
		FilePath   string `yaml:"file_path"`   // path to log file when output is file
		MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
		MaxBackups int    `yaml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
		Compress   bool   `yaml:"compress"`
		Color      bool   `yaml:"color"`
		Stacktrace bool   `yaml:"stacktrace"`
		TimeFormat string `yaml:"time_format"`
	}

	// DatabaseConfig selects the persistence backend. Driver "none" disables it.
	DatabaseConfig struct {
		Driver string `yaml:"driver"` // postgres, sqlite, none
		DSN    string `yaml:"dsn"`
	}

	RedisConfig struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`

		// Channel is the pub/sub channel room events are mirrored to.
		Channel string `yaml:"channel"`
	}

	ChatConfig struct {
		GreetingDelay time.Duration `yaml:"greeting_delay"`
		// SyntheticPartner is a pointer so that an explicit false survives defaults.
		SyntheticPartner *bool `yaml:"synthetic_partner"`
		SendBuffer       int   `yaml:"send_buffer"`
		PersistQueueSize int   `yaml:"persist_queue_size"`
	}

	UploadConfig struct {
		Dir          string `yaml:"dir"`
		MaxSize      int64  `yaml:"max_size"`
		PublicPrefix string `yaml:"public_prefix"`
	}

	AdminConfig struct {
		JWTSecret string        `yaml:"jwt_secret"`
		TokenTTL  time.Duration `yaml:"token_ttl"`
	}

	MetricsConfig struct {
		Enabled   bool   `yaml:"enabled"`
		Namespace string `yaml:"namespace"`
	}
)

// SyntheticEnabled reports whether the built-in partner fallback is on.
func (c ChatConfig) SyntheticEnabled() bool {
	return c.SyntheticPartner == nil || *c.SyntheticPartner
}

// LoadConfig reads the YAML file at path, resolves environment placeholders
// and applies defaults. An empty path yields the default configuration.
func LoadConfig(path string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		data = resolveEnv(data)
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that have no sensible default.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "none":
	case "postgres", "sqlite":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.Upload.MaxSize <= 0 {
		return fmt.Errorf("upload.max_size must be positive, got %d", c.Upload.MaxSize)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "json"
	}
	if c.Logger.Output == "" {
		c.Logger.Output = "stdout"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "none"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "anonchat"
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = c.Redis.Prefix + ":events"
	}
	if c.Chat.GreetingDelay <= 0 {
		c.Chat.GreetingDelay = DefaultGreetingDelay
	}
	if c.Chat.SendBuffer <= 0 {
		c.Chat.SendBuffer = DefaultSendBuffer
	}
	if c.Chat.PersistQueueSize <= 0 {
		c.Chat.PersistQueueSize = DefaultPersistQueueSize
	}
	if c.Upload.Dir == "" {
		c.Upload.Dir = DefaultUploadDir
	}
	if c.Upload.MaxSize == 0 {
		c.Upload.MaxSize = DefaultMaxUploadSize
	}
	if c.Upload.PublicPrefix == "" {
		c.Upload.PublicPrefix = DefaultUploadPrefix
	}
	if c.Admin.TokenTTL <= 0 {
		c.Admin.TokenTTL = DefaultAdminTokenTTL
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "anonchat"
	}
}

var envPlaceholder = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// resolveEnv replaces environment variable placeholders in YAML content
func resolveEnv(content []byte) []byte {
	return envPlaceholder.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := envPlaceholder.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string
		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
