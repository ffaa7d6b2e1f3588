package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.AppPort != "9000" {
		t.Fatalf("AppPort = %q, want 9000", cfg.AppPort)
	}
	if cfg.CronSpec != "0 */4 * * *" {
		t.Fatalf("CronSpec = %q", cfg.CronSpec)
	}
	if cfg.RunTimeoutSeconds != 600 || cfg.WorkerCount != 4 || cfg.DedupLookback != 300 {
		t.Fatalf("run params = %d/%d/%d", cfg.RunTimeoutSeconds, cfg.WorkerCount, cfg.DedupLookback)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "8080")
	t.Setenv("CRON_SPEC", "*/30 * * * *")
	t.Setenv("WORKER_COUNT", "8")

	cfg := Load()
	if cfg.AppPort != "8080" {
		t.Fatalf("AppPort = %q, want override", cfg.AppPort)
	}
	if cfg.CronSpec != "*/30 * * * *" {
		t.Fatalf("CronSpec = %q, want override", cfg.CronSpec)
	}
	if cfg.WorkerCount != 8 {
		t.Fatalf("WorkerCount = %d, want 8", cfg.WorkerCount)
	}
}

func TestGetEnvIntInvalid(t *testing.T) {
	t.Setenv("WORKER_COUNT", "not-a-number")
	if cfg := Load(); cfg.WorkerCount != 4 {
		t.Fatalf("invalid int must fall back to default, got %d", cfg.WorkerCount)
	}

	t.Setenv("WORKER_COUNT", "-2")
	if cfg := Load(); cfg.WorkerCount != 4 {
		t.Fatalf("non-positive int must fall back to default, got %d", cfg.WorkerCount)
	}
}
