package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is applied to environment overrides, e.g.
// GARRISON_SERVER_ADDR maps to server.addr.
const EnvPrefix = "GARRISON_"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Messages MessagesConfig `koanf:"messages"`
	Relay    RelayConfig    `koanf:"relay"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Addr           string   `koanf:"addr"`
	Workers        int      `koanf:"workers"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type DatabaseConfig struct {
	DSN string `koanf:"dsn"`
}

type MessagesConfig struct {
	// Dir is the BadgerDB directory for the append-only message store.
	Dir string `koanf:"dir"`
	// QueueSize bounds the async message-writer queue.
	QueueSize int `koanf:"queue_size"`
	// FetchLimit bounds history reads from the message store.
	FetchLimit int `koanf:"fetch_limit"`
}

type RelayConfig struct {
	PollInterval time.Duration `koanf:"poll_interval"`
	BatchSize    int           `koanf:"batch_size"`
	ErrorBackoff time.Duration `koanf:"error_backoff"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:    "localhost:8000",
			Workers: 0, // 0 = runtime.NumCPU at wiring time
		},
		Database: DatabaseConfig{
			DSN: "host=localhost user=postgres password=postgres dbname=garrison sslmode=disable",
		},
		Messages: MessagesConfig{
			Dir:        "data/messages",
			QueueSize:  256,
			FetchLimit: 100,
		},
		Relay: RelayConfig{
			PollInterval: 5 * time.Second,
			BatchSize:    10,
			ErrorBackoff: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// GARRISON_* environment variables, in that order of precedence.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config file %q: %w", path, err)
		}
	}

	// Only the first underscore separates the section from the key, so
	// GARRISON_MESSAGES_QUEUE_SIZE maps to messages.queue_size.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN cannot be empty")
	}
	if c.Messages.Dir == "" {
		return fmt.Errorf("message store directory cannot be empty")
	}
	if c.Messages.QueueSize <= 0 {
		return fmt.Errorf("message queue size must be positive")
	}
	if c.Relay.PollInterval <= 0 {
		return fmt.Errorf("relay poll interval must be positive")
	}
	if c.Relay.BatchSize <= 0 {
		return fmt.Errorf("relay batch size must be positive")
	}
	return nil
}
