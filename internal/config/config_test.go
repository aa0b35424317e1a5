package config

import (
	"testing"
	"time"
)

func TestLoadParsesEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/catarse")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("SWEEP_INTERVAL", "30m")
	t.Setenv("IDEMPOTENCY_TTL_SECONDS", "60")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("brokers parsed wrong: %v", cfg.KafkaBrokers)
	}
	if !cfg.KafkaEnabled() {
		t.Fatal("kafka should be enabled")
	}
	if cfg.SweepInterval != 30*time.Minute {
		t.Fatalf("sweep interval %s", cfg.SweepInterval)
	}
	if cfg.IdempotencyTTL != time.Minute {
		t.Fatalf("idempotency ttl %s", cfg.IdempotencyTTL)
	}
}

func TestLoadRequiresDatabaseAndRedis(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/catarse")
	t.Setenv("REDIS_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without REDIS_URL")
	}
}

func TestLoadDisablesSweepWithZeroInterval(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/catarse")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("SWEEP_INTERVAL", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SweepInterval != 0 {
		t.Fatalf("sweep interval %s", cfg.SweepInterval)
	}
}

func TestAddressNormalizesPort(t *testing.T) {
	c := Config{Port: "9000"}
	if got := c.Address(); got != ":9000" {
		t.Fatalf("Address() = %s", got)
	}
	c.Port = ":9000"
	if got := c.Address(); got != ":9000" {
		t.Fatalf("Address() = %s", got)
	}
}
