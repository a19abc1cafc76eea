// Package config handles loading and validating kkrpc-relay configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level configuration for the kkrpc-relay binary.
type Config struct {
	Listen ListenConfig `koanf:"listen"`
	Redis  RedisConfig  `koanf:"redis"`
	Log    LogConfig    `koanf:"log"`
}

// ListenConfig selects which adapter kkrpc-relay exposes and where.
type ListenConfig struct {
	// Mode is one of "stdio", "http", "redis".
	Mode string `koanf:"mode"`
	// Addr is the HTTP listen address, used when Mode is "http".
	Addr string `koanf:"addr"`
	// ForceText forces the legacy text codec even when the chosen
	// adapter would otherwise negotiate the structured envelope.
	ForceText bool `koanf:"force_text"`
	// MetricsAddr, if set, serves Prometheus metrics on its own listener.
	MetricsAddr string `koanf:"metrics_addr"`
}

// RedisConfig holds connection and channel-naming settings used when
// Listen.Mode is "redis".
type RedisConfig struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	Publish   string `koanf:"publish_channel"`
	Subscribe string `koanf:"subscribe_channel"`
}

// LogConfig holds the log section of the config file. Level is loaded but
// not read by kkrpc-relay or channel.Channel.
type LogConfig struct {
	Level string `koanf:"level"`
}

// Load reads configuration from a YAML file, layers KKRPC_-prefixed
// environment variable overrides on top, and returns a fully populated
// Config.
func Load(path string) (*Config, error) {
	// Load .env file into the process environment (ignored if not present).
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}

	// KKRPC_LISTEN_ADDR -> listen.addr, KKRPC_REDIS_ADDR -> redis.addr, etc.
	if err := k.Load(env.Provider("KKRPC_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "KKRPC_")),
			"_", ".",
		)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand a ${VAR_NAME} placeholder in the redis password so secrets
	// can live in the environment instead of the YAML file.
	if strings.HasPrefix(cfg.Redis.Password, "${") && strings.HasSuffix(cfg.Redis.Password, "}") {
		envVar := cfg.Redis.Password[2 : len(cfg.Redis.Password)-1]
		cfg.Redis.Password = os.Getenv(envVar)
	}

	if cfg.Listen.Mode == "" {
		cfg.Listen.Mode = "stdio"
	}

	return &cfg, nil
}
