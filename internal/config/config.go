package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidOffsets is returned when the reminder offset table is unusable.
var ErrInvalidOffsets = errors.New("invalid reminder offsets")

// Config top-level struct
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Reminders ReminderConfig  `yaml:"reminders"`
	Notify    NotifyConfig    `yaml:"notify"`
	Poller    PollerConfig    `yaml:"poller"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// KafkaConfig is where push notifications are written.
type KafkaConfig struct {
	Brokers   []string `yaml:"brokers"`
	PushTopic string   `yaml:"push_topic"`
}

// RabbitMQConfig is where email and sms jobs are published.
type RabbitMQConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

// ReminderOffset schedules a reminder of Type at start_date - Before.
type ReminderOffset struct {
	Type   string        `yaml:"type"`
	Before time.Duration `yaml:"before"`
}

type ReminderConfig struct {
	Offsets []ReminderOffset `yaml:"offsets"`
}

type NotifyConfig struct {
	ChannelTimeout time.Duration `yaml:"channel_timeout"`
}

type PollerConfig struct {
	Interval time.Duration `yaml:"interval"`
	Batch    int           `yaml:"batch"`
}

// DefaultOffsets is used when the config file does not list any.
func DefaultOffsets() []ReminderOffset {
	return []ReminderOffset{
		{Type: "day_before", Before: 24 * time.Hour},
		{Type: "hour_before", Before: time.Hour},
	}
}

// Load reads yaml file
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes yaml, applies env overrides and defaults, then validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyEnv(&cfg)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	// override DSN password from env if present
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" {
		cfg.Postgres.DSN = cfg.Postgres.DSN + " password=" + pw
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		cfg.RabbitMQ.URL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Kafka.PushTopic == "" {
		c.Kafka.PushTopic = "push-notifications"
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "notifications"
	}
	if len(c.Reminders.Offsets) == 0 {
		c.Reminders.Offsets = DefaultOffsets()
	}
	if c.Notify.ChannelTimeout <= 0 {
		c.Notify.ChannelTimeout = 5 * time.Second
	}
	if c.Poller.Interval <= 0 {
		c.Poller.Interval = time.Minute
	}
	if c.Poller.Batch <= 0 {
		c.Poller.Batch = 100
	}
}

// Validate checks the parts of the config the engine cannot run without.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Reminders.Offsets))
	for _, o := range c.Reminders.Offsets {
		if o.Type == "" {
			return fmt.Errorf("%w: empty type", ErrInvalidOffsets)
		}
		if o.Before <= 0 {
			return fmt.Errorf("%w: %s must be before the start", ErrInvalidOffsets, o.Type)
		}
		if seen[o.Type] {
			return fmt.Errorf("%w: duplicate type %s", ErrInvalidOffsets, o.Type)
		}
		seen[o.Type] = true
	}
	return nil
}
