package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config top-level struct. Values come from an optional yaml file with
// environment variables taking precedence, so container deployments can
// run config-file free.
type Config struct {
	Ledger    LedgerConfig    `yaml:"ledger"`
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Engine    EngineConfig    `yaml:"engine"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
}

// LedgerConfig identifies this ledger and its authorised minter on the
// substrate.
type LedgerConfig struct {
	PublicKey       string   `yaml:"public_key"`
	MinterPublicKey string   `yaml:"minter_public_key"`
	Relays          []string `yaml:"relays"`
	Tokens          []string `yaml:"tokens"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	RequestsTopic string   `yaml:"requests_topic"`
	EventsTopic   string   `yaml:"events_topic"`
	GroupID       string   `yaml:"group_id"`
}

// EngineConfig tunes the transaction engine.
type EngineConfig struct {
	Workers             int   `yaml:"workers"`
	MaxRetries          int   `yaml:"max_retries"`
	RepublishIntervalMs int   `yaml:"republish_interval_ms"`
	FreshnessWindowSec  int64 `yaml:"freshness_window_sec"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

// Load reads the yaml file when present, then applies env overrides and
// defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("NOSTR_PUBLIC_KEY"); v != "" {
		cfg.Ledger.PublicKey = v
	}
	if v := os.Getenv("MINTER_PUBLIC_KEY"); v != "" {
		cfg.Ledger.MinterPublicKey = v
	}
	if v := os.Getenv("NOSTR_RELAYS"); v != "" {
		cfg.Ledger.Relays = splitCSV(v)
	}
	if v := os.Getenv("LEDGER_TOKENS"); v != "" {
		cfg.Ledger.Tokens = splitCSV(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitCSV(v)
	}
	if v := os.Getenv("KAFKA_REQUESTS_TOPIC"); v != "" {
		cfg.Kafka.RequestsTopic = v
	}
	if v := os.Getenv("KAFKA_EVENTS_TOPIC"); v != "" {
		cfg.Kafka.EventsTopic = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Kafka.RequestsTopic == "" {
		cfg.Kafka.RequestsTopic = "ledger.requests"
	}
	if cfg.Kafka.EventsTopic == "" {
		cfg.Kafka.EventsTopic = "ledger.events"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "token-ledger-engine"
	}
	if cfg.Engine.Workers == 0 {
		cfg.Engine.Workers = 4
	}
	if cfg.Engine.MaxRetries == 0 {
		cfg.Engine.MaxRetries = 10
	}
	if cfg.Engine.RepublishIntervalMs == 0 {
		cfg.Engine.RepublishIntervalMs = 1000
	}
	if cfg.Engine.FreshnessWindowSec == 0 {
		cfg.Engine.FreshnessWindowSec = 86000
	}
	if cfg.RateLimit.RPS == 0 {
		cfg.RateLimit.RPS = 50
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 100
	}
}

func (c *Config) validate() error {
	if c.Ledger.PublicKey == "" {
		return errors.New("NOSTR_PUBLIC_KEY is required")
	}
	if c.Ledger.MinterPublicKey == "" {
		return errors.New("MINTER_PUBLIC_KEY is required")
	}
	if c.Postgres.DSN == "" {
		return errors.New("DATABASE_URL is required")
	}
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
