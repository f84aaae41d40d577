package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the charter server configuration, loaded from charter.yaml and
// CHARTER_* environment variables (CHARTER_STORE_DSN for store.dsn).
type Config struct {
	HTTP  HTTPConfig  `mapstructure:"http"`
	Store StoreConfig `mapstructure:"store"`
	Cache CacheConfig `mapstructure:"cache"`
	Auth  AuthConfig  `mapstructure:"auth"`
	Log   LogConfig   `mapstructure:"log"`
}

type HTTPConfig struct {
	Addr        string   `mapstructure:"addr"`
	BasePath    string   `mapstructure:"base_path"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type StoreConfig struct {
	// Driver is one of memory, postgres, sqlite, mongo.
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type CacheConfig struct {
	// Driver is one of none, memory, redis.
	Driver   string        `mapstructure:"driver"`
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type AuthConfig struct {
	Secret string `mapstructure:"secret"`
}

type LogConfig struct {
	// Format is json or text.
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.base_path", "")
	v.SetDefault("http.cors_origins", []string{})
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("auth.secret", "")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.level", "info")
}

// flagKeys maps command flags onto config keys.
var flagKeys = map[string]string{
	"addr":         "http.addr",
	"store-driver": "store.driver",
	"store-dsn":    "store.dsn",
	"cache-driver": "cache.driver",
	"log-format":   "log.format",
	"log-level":    "log.level",
}

// loadConfig reads path (or ./charter.yaml when path is empty), then
// environment, then any flag of cmd that was set explicitly.
func loadConfig(cmd *cobra.Command, path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("charter")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("CHARTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if cmd != nil {
		for name, key := range flagKeys {
			if f := cmd.Flags().Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Store.Driver {
	case "memory":
	case "postgres", "sqlite", "mongo":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the %s driver", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	switch c.Cache.Driver {
	case "none", "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			return errors.New("cache.redis_url is required for the redis cache")
		}
	default:
		return fmt.Errorf("unknown cache.driver %q", c.Cache.Driver)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	return nil
}
