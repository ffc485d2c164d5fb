// Package config loads the vitalwatch server configuration from an optional
// YAML file and VITALWATCH_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"vitalwatch/internal/alerts"
)

// EnvPrefix prefixes every environment override. Nested keys join with an
// underscore, so engine.alert_capacity is VITALWATCH_ENGINE_ALERT_CAPACITY.
const EnvPrefix = "VITALWATCH"

// Config holds runtime configuration for the vitalwatch server.
type Config struct {
	Engine     EngineConfig `mapstructure:"engine"`
	HTTP       HTTPConfig   `mapstructure:"http"`
	Log        LogConfig    `mapstructure:"log"`
	Worker     WorkerConfig `mapstructure:"worker"`
	Kafka      KafkaConfig  `mapstructure:"kafka"`
	Redis      RedisConfig  `mapstructure:"redis"`
	Thresholds alerts.Rules `mapstructure:"-"`
}

// EngineConfig tunes the simulation loop and the alert store.
type EngineConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	AlertCapacity  int           `mapstructure:"alert_capacity"`
	HistoryCap     int           `mapstructure:"history_cap"`
	Variance       float64       `mapstructure:"variance"`
	EventQueueSize int           `mapstructure:"event_queue_size"`
	Node           string        `mapstructure:"node"`
	// DisableSeedAlerts starts the store empty instead of with the demo alerts.
	DisableSeedAlerts bool `mapstructure:"disable_seed_alerts"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// WorkerConfig sizes the pool that drains alert events to the publisher.
type WorkerConfig struct {
	Count        int           `mapstructure:"count"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

type KafkaConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Brokers  []string       `mapstructure:"brokers"`
	Topic    string         `mapstructure:"topic"`
	Producer ProducerConfig `mapstructure:"producer"`
}

// ProducerConfig holds Kafka writer settings
type ProducerConfig struct {
	PoolSize     int           `mapstructure:"pool_size"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RequiredAcks int           `mapstructure:"required_acks"`
	Compression  string        `mapstructure:"compression"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// RedisConfig configures the dashboard mirror.
type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// Default returns a sensible default config for local dev.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads a YAML config file, applies VITALWATCH_* environment overrides,
// fills in defaults and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := newViper()

	var raw []byte
	if path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)

	// Viper folds keys to lower case and vital kinds are camelCase, so the
	// thresholds section is decoded from the file directly.
	if len(raw) > 0 {
		var doc struct {
			Thresholds alerts.Rules `yaml:"thresholds"`
		}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse thresholds %s: %w", path, err)
		}
		cfg.Thresholds = doc.Thresholds
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())
	return v
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("engine.interval", d.Engine.Interval)
	v.SetDefault("engine.alert_capacity", d.Engine.AlertCapacity)
	v.SetDefault("engine.history_cap", d.Engine.HistoryCap)
	v.SetDefault("engine.variance", d.Engine.Variance)
	v.SetDefault("engine.event_queue_size", d.Engine.EventQueueSize)
	v.SetDefault("engine.node", d.Engine.Node)
	v.SetDefault("engine.disable_seed_alerts", d.Engine.DisableSeedAlerts)

	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.read_timeout", d.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", d.HTTP.WriteTimeout)
	v.SetDefault("http.shutdown_timeout", d.HTTP.ShutdownTimeout)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("worker.count", d.Worker.Count)
	v.SetDefault("worker.batch_size", d.Worker.BatchSize)
	v.SetDefault("worker.batch_timeout", d.Worker.BatchTimeout)

	v.SetDefault("kafka.enabled", d.Kafka.Enabled)
	v.SetDefault("kafka.brokers", d.Kafka.Brokers)
	v.SetDefault("kafka.topic", d.Kafka.Topic)
	p := d.Kafka.Producer
	v.SetDefault("kafka.producer.pool_size", p.PoolSize)
	v.SetDefault("kafka.producer.batch_size", p.BatchSize)
	v.SetDefault("kafka.producer.batch_timeout", p.BatchTimeout)
	v.SetDefault("kafka.producer.write_timeout", p.WriteTimeout)
	v.SetDefault("kafka.producer.required_acks", p.RequiredAcks)
	v.SetDefault("kafka.producer.compression", p.Compression)
	v.SetDefault("kafka.producer.max_retries", p.MaxRetries)
	v.SetDefault("kafka.producer.retry_backoff", p.RetryBackoff)

	v.SetDefault("redis.enabled", d.Redis.Enabled)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.key_prefix", d.Redis.KeyPrefix)
	v.SetDefault("redis.ttl", d.Redis.TTL)
}

// splitList trims entries and drops empty ones; comma lists from the
// environment arrive with their spaces intact.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) applyDefaults() {
	if c.Engine.Interval == 0 {
		c.Engine.Interval = 5 * time.Second
	}
	if c.Engine.AlertCapacity == 0 {
		c.Engine.AlertCapacity = 100
	}
	if c.Engine.HistoryCap == 0 {
		c.Engine.HistoryCap = 24
	}
	if c.Engine.Variance == 0 {
		c.Engine.Variance = 0.1
	}
	if c.Engine.EventQueueSize == 0 {
		c.Engine.EventQueueSize = 1024
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 10 * time.Second
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 15 * time.Second
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	if c.Worker.Count == 0 {
		c.Worker.Count = 2
	}
	if c.Worker.BatchSize == 0 {
		c.Worker.BatchSize = 100
	}
	if c.Worker.BatchTimeout == 0 {
		c.Worker.BatchTimeout = 100 * time.Millisecond
	}

	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "vitalwatch.alerts"
	}
	p := &c.Kafka.Producer
	if p.PoolSize == 0 {
		p.PoolSize = 4
	}
	if p.BatchSize == 0 {
		p.BatchSize = 100
	}
	if p.BatchTimeout == 0 {
		p.BatchTimeout = 10 * time.Millisecond
	}
	if p.WriteTimeout == 0 {
		p.WriteTimeout = 10 * time.Second
	}
	if p.RequiredAcks == 0 {
		p.RequiredAcks = -1 // all in-sync replicas
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = 3
	}
	if p.RetryBackoff == 0 {
		p.RetryBackoff = 100 * time.Millisecond
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "vitalwatch"
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = 5 * time.Minute
	}

	c.Thresholds = alerts.DefaultRules().Merge(c.Thresholds)
}

// Validate checks the config is usable
func (c *Config) Validate() error {
	if c.Engine.Interval <= 0 {
		return errors.New("engine.interval must be positive")
	}
	if c.Engine.AlertCapacity <= 0 {
		return errors.New("engine.alert_capacity must be positive")
	}
	if c.Engine.HistoryCap <= 0 {
		return errors.New("engine.history_cap must be positive")
	}
	if c.Engine.Variance <= 0 || c.Engine.Variance > 1 {
		return fmt.Errorf("engine.variance must be in (0, 1], got %g", c.Engine.Variance)
	}
	if c.Engine.EventQueueSize < 0 {
		return errors.New("engine.event_queue_size cannot be negative")
	}
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka.brokers is required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return errors.New("kafka.topic is required when kafka is enabled")
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when redis is enabled")
	}
	return nil
}
