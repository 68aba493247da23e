package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_CacheTTLDefaults(t *testing.T) {
	// Set required env vars
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"DefaultTTL", cfg.Cache.DefaultTTL, 1 * time.Hour},
		{"ListTTL", cfg.Cache.ListTTL, 300 * time.Second},
		{"TaskTTL", cfg.Cache.TaskTTL, 600 * time.Second},
		{"StatsTTL", cfg.Cache.StatsTTL, 900 * time.Second},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("CACHE_LIST_TTL", "2m")
	os.Setenv("RATE_LIMIT_REQUESTS", "5")
	os.Setenv("RATE_LIMIT_WINDOW", "1s")
	os.Setenv("QUEUE_CONCURRENCY", "4")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Cache.ListTTL != 2*time.Minute {
		t.Errorf("ListTTL: got %v, want %v", cfg.Cache.ListTTL, 2*time.Minute)
	}
	if cfg.RateLimit.Requests != 5 {
		t.Errorf("RateLimit.Requests: got %d, want 5", cfg.RateLimit.Requests)
	}
	if cfg.RateLimit.Window != time.Second {
		t.Errorf("RateLimit.Window: got %v, want 1s", cfg.RateLimit.Window)
	}
	if cfg.Queue.Concurrency != 4 {
		t.Errorf("Queue.Concurrency: got %d, want 4", cfg.Queue.Concurrency)
	}
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil error, want error for missing JWT_SECRET")
	}
}

func TestLoad_WeakJWTSecretRejected(t *testing.T) {
	os.Setenv("JWT_SECRET", "not-long-enough")
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil error, want error for short JWT_SECRET")
	}
}

func TestLoad_NotifyRequiresFromAddress(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("NOTIFY_ENABLED", "true")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil error, want error for missing NOTIFY_FROM_ADDRESS")
	}
}
