package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Log       LogConfig       `mapstructure:"log" validate:"required"`
	Backend   BackendConfig   `mapstructure:"backend" validate:"required"`
	Transport TransportConfig `mapstructure:"transport" validate:"required"`
	Redis     *RedisConfig    `mapstructure:"redis"`
	Queue     *QueueConfig    `mapstructure:"queue"`
	Store     StoreConfig     `mapstructure:"store" validate:"required"`
	Browser   BrowserConfig   `mapstructure:"browser" validate:"required"`
	Jobs      JobsConfig      `mapstructure:"jobs" validate:"required"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error fatal"`
}

type BackendConfig struct {
	BaseURL        string `mapstructure:"base_url" validate:"required,url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"min=1,max=600"`
	RetryMax       int    `mapstructure:"retry_max" validate:"min=0,max=10"`
	RetryWaitMinMs int    `mapstructure:"retry_wait_min_ms" validate:"min=1"`
	RetryWaitMaxMs int    `mapstructure:"retry_wait_max_ms" validate:"min=1,gtefield=RetryWaitMinMs"`
}

// TransportConfig selects who receives sync submissions and answers job
// queries. Directory listings and remote configs always go through the
// HTTP backend.
type TransportConfig struct {
	Type string `mapstructure:"type" validate:"required,oneof=http queue"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0,max=15"`
}

type QueueConfig struct {
	Name           string `mapstructure:"name" validate:"required"`
	MaxRetry       int    `mapstructure:"max_retry" validate:"min=0,max=10"`
	TimeoutMinutes int    `mapstructure:"timeout_minutes" validate:"required,min=1,max=1440"`
	RetentionHours int    `mapstructure:"retention_hours" validate:"min=0,max=720"`
}

type StoreConfig struct {
	Type      string `mapstructure:"type" validate:"required,oneof=memory redis"`
	KeyPrefix string `mapstructure:"key_prefix" validate:"required"`
}

type BrowserConfig struct {
	CacheTTLSeconds      int    `mapstructure:"cache_ttl_seconds" validate:"min=1"`
	DefaultLocalPath     string `mapstructure:"default_local_path" validate:"required"`
	MaxConcurrentFetches int    `mapstructure:"max_concurrent_fetches" validate:"min=1,max=64"`
}

type JobsConfig struct {
	PollIntervalMs int `mapstructure:"poll_interval_ms" validate:"min=10"`
	ListIntervalMs int `mapstructure:"list_interval_ms" validate:"min=10"`
}

func (c BackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c BrowserConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c JobsConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c JobsConfig) ListInterval() time.Duration {
	return time.Duration(c.ListIntervalMs) * time.Millisecond
}

func LoadFromFile(filename string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(filename)
	v.SetConfigType("toml")

	v.SetEnvPrefix("SYNCDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return unmarshal(v)
}

// LoadDefaults builds a config from defaults and SYNCDECK_* environment
// variables only, for running without a config file.
func LoadDefaults() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SYNCDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("backend.base_url", "http://localhost:3000")
	v.SetDefault("backend.timeout_seconds", 30)
	v.SetDefault("backend.retry_max", 2)
	v.SetDefault("backend.retry_wait_min_ms", 200)
	v.SetDefault("backend.retry_wait_max_ms", 2000)

	v.SetDefault("transport.type", "http")

	v.SetDefault("store.type", "memory")
	v.SetDefault("store.key_prefix", "syncdeck")

	v.SetDefault("browser.cache_ttl_seconds", 5*60)
	v.SetDefault("browser.default_local_path", "/mnt/home")
	v.SetDefault("browser.max_concurrent_fetches", 4)

	v.SetDefault("jobs.poll_interval_ms", 1000)
	v.SetDefault("jobs.list_interval_ms", 2000)
}

func validateConfig(config *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := validate.StructExcept(config, "Redis", "Queue"); err != nil {
		return err
	}

	needsRedis := config.Transport.Type == "queue" || config.Store.Type == "redis"
	if needsRedis {
		if config.Redis == nil {
			return fmt.Errorf("redis configuration is required when transport is 'queue' or store is 'redis'")
		}
		if err := validate.Struct(config.Redis); err != nil {
			return err
		}
	}

	if config.Transport.Type == "queue" {
		if config.Queue == nil {
			return fmt.Errorf("queue configuration is required when transport type is 'queue'")
		}
		if err := validate.Struct(config.Queue); err != nil {
			return err
		}
	}

	return nil
}
