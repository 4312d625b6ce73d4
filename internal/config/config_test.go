package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	t.Chdir(t.TempDir()) // no stray .env
	path := writeConfig(t, `
postgres:
  dsn: "postgres://file"
kafka:
  brokers: ["a:9092"]
detection:
  min_confidence: 0.4
  timeout: 2s
`)
	t.Setenv("KAFKA_BROKERS", "b:9092,c:9092")
	t.Setenv("DETECTION_MIN_WIDTH", "25")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Postgres.DSN != "postgres://file" {
		t.Errorf("DSN = %q, want from file", cfg.Postgres.DSN)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "b:9092" {
		t.Errorf("Brokers = %v, want env override", cfg.Kafka.Brokers)
	}
	if cfg.Detection.MinConfidence != 0.4 {
		t.Errorf("MinConfidence = %v, want 0.4", cfg.Detection.MinConfidence)
	}
	if cfg.Detection.MinWidth != 25 {
		t.Errorf("MinWidth = %v, want 25", cfg.Detection.MinWidth)
	}
	if cfg.Detection.MinHeight != 40 {
		t.Errorf("MinHeight = %v, want default 40", cfg.Detection.MinHeight)
	}
	if cfg.Detection.Timeout != 2*time.Second {
		t.Errorf("Timeout = %v, want 2s", cfg.Detection.Timeout)
	}
	if cfg.Kafka.FramesTopic != "camera-frames" {
		t.Errorf("FramesTopic = %q, want default", cfg.Kafka.FramesTopic)
	}
}

func TestLoadConfig_MissingFileUsesEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_DSN", "postgres://env")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Postgres.DSN != "postgres://env" {
		t.Errorf("DSN = %q, want postgres://env", cfg.Postgres.DSN)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := LoadConfig(writeConfig(t, "postgres: [")); err == nil {
		t.Error("expected parse error")
	}
	if _, err := LoadConfig(writeConfig(t, "detection:\n  min_confidence: 0.5\n")); err == nil {
		t.Error("expected error for missing dsn")
	}
	if _, err := LoadConfig(writeConfig(t, "postgres:\n  dsn: x\ndetection:\n  min_confidence: 1.5\n")); err == nil {
		t.Error("expected error for confidence out of range")
	}
}

func TestLoadConfig_NonPositiveSettings(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, "postgres:\n  dsn: x\n")

	for _, key := range []string{
		"OUTBOX_INTERVAL",
		"OUTBOX_BATCH_SIZE",
		"WATCHDOG_INTERVAL",
		"WATCHDOG_STALE_AFTER",
		"DETECTION_MIN_WIDTH",
		"DETECTION_MIN_HEIGHT",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "0")
			if _, err := LoadConfig(path); err == nil {
				t.Errorf("LoadConfig() with %s=0: error = nil, want rejection", key)
			}
		})
	}

	if _, err := LoadConfig(path); err != nil {
		t.Errorf("LoadConfig() with defaults: error = %v", err)
	}
}
