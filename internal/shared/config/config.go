package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration for all run modes.
type Config struct {
	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"database"`
	} `yaml:"database"`

	RabbitMQ struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"rabbitmq"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Storage struct {
		// Backend selects the bounded store implementation: memory, redis, postgres.
		Backend       string `yaml:"backend"`
		CapacityBytes int64  `yaml:"capacity_bytes"`
	} `yaml:"storage"`

	Storefront struct {
		NotificationCap   int `yaml:"notification_cap"`
		ChatHistoryCap    int `yaml:"chat_history_cap"`
		ChatTruncateTo    int `yaml:"chat_truncate_to"`
		ChatImageMaxBytes int `yaml:"chat_image_max_bytes"`
		SLAGraceMinutes   int `yaml:"sla_grace_minutes"`
		TypingTTLSeconds  int `yaml:"typing_ttl_seconds"`
	} `yaml:"storefront"`
}

// LoadFromFile loads config from a YAML file, applies defaults, and
// validates required fields.
func LoadFromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaults sets safe defaults for omitted fields.
func (c *Config) ApplyDefaults() {
	// Database
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}

	// RabbitMQ
	if c.RabbitMQ.Host == "" {
		c.RabbitMQ.Host = "localhost"
	}
	if c.RabbitMQ.Port == 0 {
		c.RabbitMQ.Port = 5672
	}

	// Redis
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}

	// Storage
	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}
	if c.Storage.CapacityBytes == 0 {
		c.Storage.CapacityBytes = 5 << 20
	}

	// Storefront caps; demo constants from the source system, overridable per deployment.
	if c.Storefront.NotificationCap == 0 {
		c.Storefront.NotificationCap = 50
	}
	if c.Storefront.ChatHistoryCap == 0 {
		c.Storefront.ChatHistoryCap = 150
	}
	if c.Storefront.ChatTruncateTo == 0 {
		c.Storefront.ChatTruncateTo = 50
	}
	if c.Storefront.ChatImageMaxBytes == 0 {
		c.Storefront.ChatImageMaxBytes = 5 << 20
	}
	if c.Storefront.SLAGraceMinutes == 0 {
		c.Storefront.SLAGraceMinutes = 15
	}
	if c.Storefront.TypingTTLSeconds == 0 {
		c.Storefront.TypingTTLSeconds = 3
	}
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	var problems []string

	switch c.Storage.Backend {
	case "memory", "redis", "postgres":
	default:
		problems = append(problems, "storage.backend must be one of: memory, redis, postgres")
	}
	if c.Storage.CapacityBytes < 0 {
		problems = append(problems, "storage.capacity_bytes must be >= 0")
	}

	if c.Storage.Backend == "postgres" {
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			problems = append(problems, "database.port must be in 1..65535")
		}
		if c.Database.User == "" {
			problems = append(problems, "database.user is required")
		}
		if c.Database.Password == "" {
			problems = append(problems, "database.password is required")
		}
		if c.Database.Name == "" {
			problems = append(problems, "database.database (name) is required")
		}
	}

	if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
		problems = append(problems, "rabbitmq.port must be in 1..65535")
	}

	if c.Storefront.NotificationCap < 1 {
		problems = append(problems, "storefront.notification_cap must be >= 1")
	}
	if c.Storefront.ChatHistoryCap < 1 {
		problems = append(problems, "storefront.chat_history_cap must be >= 1")
	}
	if c.Storefront.ChatTruncateTo < 1 || c.Storefront.ChatTruncateTo > c.Storefront.ChatHistoryCap {
		problems = append(problems, "storefront.chat_truncate_to must be in 1..chat_history_cap")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
