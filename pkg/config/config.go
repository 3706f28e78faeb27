package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"2s"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost" validate:"required"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"luther" validate:"required"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
		InitSchema       bool          `yaml:"init_schema" default:"true"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers" validate:"required_if=Enabled true"`
		Topic        string   `yaml:"topic" default:"luther.predictions"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"100ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Cache struct {
		Type          string        `yaml:"type" default:"memory" validate:"oneof=memory redis none"`
		PredictionTTL time.Duration `yaml:"prediction_ttl" default:"60s"`
		Redis         struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Predictor struct {
		Trees           int     `yaml:"trees" default:"100" validate:"gte=1,lte=1000"`
		MaxDepth        int     `yaml:"max_depth" default:"10" validate:"gte=1,lte=64"`
		MinSamplesSplit int     `yaml:"min_samples_split" default:"2" validate:"gte=2"`
		MinSamplesLeaf  int     `yaml:"min_samples_leaf" default:"1" validate:"gte=1"`
		Seed            uint64  `yaml:"seed" default:"42"`
		Workers         int     `yaml:"workers"`
		MinTrainingRows int     `yaml:"min_training_rows" default:"20" validate:"gte=2"`
		TestFraction    float64 `yaml:"test_fraction" default:"0.2" validate:"gt=0,lt=1"`
		DefaultHorizon  int     `yaml:"default_horizon" default:"1" validate:"gte=1"`
		Confidence      string  `yaml:"confidence" default:"holdout" validate:"oneof=holdout in_sample"`
		ConfidenceFloor float64 `yaml:"confidence_floor" default:"0.1" validate:"gte=0,lte=1"`
		ConfidenceCeil  float64 `yaml:"confidence_ceil" default:"0.9" validate:"gte=0,lte=1,gtefield=ConfidenceFloor"`
		HistoryBars     int     `yaml:"history_bars" default:"250" validate:"gte=1"`
	} `yaml:"predictor"`
	Watchlist struct {
		Symbols     []string      `yaml:"symbols"`
		Concurrency int           `yaml:"concurrency" default:"4" validate:"gte=1"`
		Timeout     time.Duration `yaml:"timeout" default:"30s"`
	} `yaml:"watchlist"`
	RateLimit struct {
		TrainBurst     float64 `yaml:"train_burst" default:"5"`
		TrainPerSecond float64 `yaml:"train_per_second" default:"0.2"`
	} `yaml:"rate_limit"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse fills defaults, decodes YAML over them and validates the result.
// Defaults go first so explicit zero values (false, 0) in the file survive.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("APP_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
		c.Cache.Type = "redis"
	}
	if v := getenv("WATCHLIST"); v != "" {
		c.Watchlist.Symbols = strings.Split(v, ",")
	}
	if v := getenv("PREDICTOR_CONFIDENCE"); v != "" {
		c.Predictor.Confidence = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	return nil
}
