package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("RETRY_BACKOFF", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreDriver != DriverMemory || cfg.HTTPAddr != ":8080" || cfg.Currency != "USD" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.RetryBackoff) != 3 || cfg.RetryBackoff[2] != 30*time.Second {
		t.Fatalf("backoff = %v", cfg.RetryBackoff)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":    {"JWT_SECRET": ""},
		"unknown driver":    {"STORE_DRIVER": "sqlite"},
		"mongo without uri": {"STORE_DRIVER": "mongo", "MONGO_URI": ""},
		"postgres no dsn":   {"STORE_DRIVER": "postgres", "POSTGRES_DSN": ""},
		"bad duration":      {"IDEMP_TTL": "tomorrow"},
		"bad backoff":       {"RETRY_BACKOFF": "1s,soon"},
		"bad currency":      {"CURRENCY": "DOLLARS"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "secret")
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
