package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Storage backend identifiers accepted by store_backend.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Global configuration structure.
type Global struct {
	// Analysis backend
	BackendURL     string `mapstructure:"backend_url" yaml:"backend_url"`
	HTTPTimeoutSec int    `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`

	// Durable storage
	DataDir        string `mapstructure:"data_dir" yaml:"data_dir"`
	StoreBackend   string `mapstructure:"store_backend" yaml:"store_backend"`
	StoreNamespace string `mapstructure:"store_namespace" yaml:"store_namespace"`
	RedisAddr      string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisDB        int    `mapstructure:"redis_db" yaml:"redis_db"`

	// Logging
	LogFile  string `mapstructure:"log_file" yaml:"log_file"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// Rendering
	RenderMarkdown bool `mapstructure:"render_markdown" yaml:"render_markdown"`
	WordWrap       int  `mapstructure:"word_wrap" yaml:"word_wrap"`
}

// DefaultDir returns ~/.edachat.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".edachat"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.edachat/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := DefaultDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env (.env included) > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	// A .env in the working directory is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("EDACHAT")
	v.AutomaticEnv()

	v.SetDefault("backend_url", "http://localhost:8000")
	v.SetDefault("http_timeout_sec", 120)
	v.SetDefault("data_dir", "")
	v.SetDefault("store_backend", StoreFile)
	v.SetDefault("store_namespace", "edachat")
	v.SetDefault("redis_addr", "127.0.0.1:6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("log_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("render_markdown", true)
	v.SetDefault("word_wrap", 80)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		_ = os.MkdirAll(dir, 0o755)
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.DataDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		c.DataDir = dir
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(c.DataDir, "logs", "edachat.log")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks enumerated values.
func (c *Global) Validate() error {
	switch c.StoreBackend {
	case StoreFile, StoreSQLite, StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("invalid store_backend: %s (use file, sqlite, redis or memory)", c.StoreBackend)
	}
	if c.BackendURL == "" {
		return errors.New("backend_url cannot be empty")
	}
	return nil
}
