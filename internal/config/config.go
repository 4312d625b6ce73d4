package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/logging"
)

const defaultPath = "internal/config/local.yaml"

// Config структура конфига
type Config struct {
	HTTP struct {
		Addr string `yaml:"addr" env:"HTTP_ADDR"`
	} `yaml:"http"`

	Postgres struct {
		DSN string `yaml:"dsn" env:"DATABASE_DSN"`
	} `yaml:"postgres"`

	Minio struct {
		Endpoint          string `yaml:"endpoint" env:"MINIO_ENDPOINT"`
		AccessKey         string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
		SecretKey         string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
		Secure            bool   `yaml:"secure" env:"MINIO_SECURE"`
		FramesBucket      string `yaml:"frames_bucket" env:"MINIO_FRAMES_BUCKET"`
		SnapshotsBucket   string `yaml:"snapshots_bucket" env:"MINIO_SNAPSHOTS_BUCKET"`
		PredictionsBucket string `yaml:"predictions_bucket" env:"MINIO_PREDICTIONS_BUCKET"`
	} `yaml:"minio"`

	Kafka struct {
		Brokers     []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
		GroupID     string   `yaml:"group_id" env:"KAFKA_GROUP_ID"`
		FramesTopic string   `yaml:"frames_topic" env:"FRAMES_TOPIC"`
		AlertsTopic string   `yaml:"alerts_topic" env:"ALERTS_TOPIC"`
	} `yaml:"kafka"`

	Detection struct {
		Endpoint           string        `yaml:"endpoint" env:"DETECTION_ENDPOINT"`
		Timeout            time.Duration `yaml:"timeout" env:"DETECTION_TIMEOUT"`
		Retries            int           `yaml:"retries" env:"DETECTION_RETRIES"`
		UpstreamConfidence float64       `yaml:"upstream_confidence" env:"DETECTION_UPSTREAM_CONFIDENCE"`
		MinConfidence      float64       `yaml:"min_confidence" env:"DETECTION_MIN_CONFIDENCE"`
		MinWidth           float64       `yaml:"min_width" env:"DETECTION_MIN_WIDTH"`
		MinHeight          float64       `yaml:"min_height" env:"DETECTION_MIN_HEIGHT"`
	} `yaml:"detection"`

	Outbox struct {
		Interval  time.Duration `yaml:"interval" env:"OUTBOX_INTERVAL"`
		BatchSize int           `yaml:"batch_size" env:"OUTBOX_BATCH_SIZE"`
	} `yaml:"outbox"`

	Watchdog struct {
		Interval   time.Duration `yaml:"interval" env:"WATCHDOG_INTERVAL"`
		StaleAfter time.Duration `yaml:"stale_after" env:"WATCHDOG_STALE_AFTER"`
	} `yaml:"watchdog"`

	Log logging.Config `yaml:"log"`
}

// Default returns the values used when neither the file nor the environment sets a key.
func Default() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = ":8002"
	cfg.Minio.FramesBucket = "frames"
	cfg.Minio.SnapshotsBucket = "snapshots"
	cfg.Minio.PredictionsBucket = "predictions"
	cfg.Kafka.GroupID = "zoneguard"
	cfg.Kafka.FramesTopic = "camera-frames"
	cfg.Kafka.AlertsTopic = "zone-alerts"
	cfg.Detection.Timeout = 5 * time.Second
	cfg.Detection.Retries = 5
	cfg.Detection.UpstreamConfidence = 0.2
	cfg.Detection.MinConfidence = 0.3
	cfg.Detection.MinWidth = 20
	cfg.Detection.MinHeight = 40
	cfg.Outbox.Interval = 5 * time.Second
	cfg.Outbox.BatchSize = 100
	cfg.Watchdog.Interval = 30 * time.Second
	cfg.Watchdog.StaleAfter = 2 * time.Minute
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

// LoadConfig reads defaults, then the YAML file, then .env and the process environment,
// each layer overriding the previous one. A missing YAML file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = defaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Postgres.DSN == "" {
		return errors.New("postgres dsn is required")
	}
	if c.Detection.MinConfidence < 0 || c.Detection.MinConfidence > 1 {
		return fmt.Errorf("detection min_confidence %v out of [0,1]", c.Detection.MinConfidence)
	}
	if c.Detection.Retries < 1 {
		return fmt.Errorf("detection retries must be positive, got %d", c.Detection.Retries)
	}
	if c.Detection.MinWidth <= 0 || c.Detection.MinHeight <= 0 {
		return fmt.Errorf("detection min size must be positive, got %vx%v", c.Detection.MinWidth, c.Detection.MinHeight)
	}
	if c.Outbox.Interval <= 0 || c.Watchdog.Interval <= 0 {
		return fmt.Errorf("outbox and watchdog intervals must be positive, got %v and %v", c.Outbox.Interval, c.Watchdog.Interval)
	}
	if c.Outbox.BatchSize < 1 {
		return fmt.Errorf("outbox batch size must be positive, got %d", c.Outbox.BatchSize)
	}
	if c.Watchdog.StaleAfter <= 0 {
		return fmt.Errorf("watchdog stale_after must be positive, got %v", c.Watchdog.StaleAfter)
	}
	return nil
}
