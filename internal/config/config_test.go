package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RunAddress != "localhost:8080" {
		t.Errorf("RunAddress = %q", cfg.RunAddress)
	}
	if cfg.Processor.Currency != "RUB" || cfg.Processor.Timeout != 10*time.Second {
		t.Errorf("Processor = %+v", cfg.Processor)
	}
	if cfg.KafkaBrokers != "" || cfg.WebhookSecret != "" {
		t.Errorf("optional integrations enabled by default: %+v", cfg)
	}
}

func TestLoadFlags(t *testing.T) {
	cfg, err := Load([]string{
		"-a", ":9000",
		"-k", "kafka-1:9092,kafka-2:9092",
		"-shop-id", "123",
		"-payment-timeout", "3s",
		"-webhook-rps", "2.5",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RunAddress != ":9000" || cfg.KafkaBrokers != "kafka-1:9092,kafka-2:9092" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Processor.ShopID != "123" || cfg.Processor.Timeout != 3*time.Second {
		t.Errorf("Processor = %+v", cfg.Processor)
	}
	if cfg.WebhookRateLimit != 2.5 {
		t.Errorf("WebhookRateLimit = %v", cfg.WebhookRateLimit)
	}
}

func TestLoadEnvOverridesFlags(t *testing.T) {
	t.Setenv("RUN_ADDRESS", ":7000")
	t.Setenv("DATABASE_URI", "postgres://env/db")
	t.Setenv("WEBHOOK_SECRET", "whsec")
	t.Setenv("PAYMENT_SHOP_ID", "env-shop")
	t.Setenv("PAYMENT_TIMEOUT", "5s")

	cfg, err := Load([]string{"-a", ":9000", "-shop-id", "flag-shop"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RunAddress != ":7000" || cfg.DatabaseURI != "postgres://env/db" || cfg.WebhookSecret != "whsec" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Processor.ShopID != "env-shop" || cfg.Processor.Timeout != 5*time.Second {
		t.Errorf("Processor = %+v", cfg.Processor)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load([]string{"-unknown"}); err == nil {
		t.Error("unknown flag accepted")
	}
	if _, err := Load([]string{"-payment-timeout", "0s"}); err == nil {
		t.Error("zero timeout accepted")
	}

	t.Setenv("WEBHOOK_BURST", "lots")
	if _, err := Load(nil); err == nil {
		t.Error("non-numeric WEBHOOK_BURST accepted")
	}
}
