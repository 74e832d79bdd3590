package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Tenant != "default" {
		t.Errorf("Expected tenant 'default', got '%s'", cfg.Tenant)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("Expected 25 max open conns, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.FaceService.URL != "http://localhost:8000" {
		t.Errorf("Unexpected face service URL: %s", cfg.FaceService.URL)
	}
	if cfg.Worker.Timeout != 120*time.Second {
		t.Errorf("Expected 120s timeout, got %s", cfg.Worker.Timeout)
	}
	if cfg.Worker.RestartAfter != 5 {
		t.Errorf("Expected restart cadence 5, got %d", cfg.Worker.RestartAfter)
	}
	if cfg.Worker.MaxRestarts != 100 {
		t.Errorf("Expected restart cap 100, got %d", cfg.Worker.MaxRestarts)
	}
}

func TestLoadEmbeddedThresholds(t *testing.T) {
	cfg := Load()

	if cfg.Thresholds.Clustering.Default != 0.70 {
		t.Errorf("Expected default threshold 0.70, got %f", cfg.Thresholds.Clustering.Default)
	}
	if cfg.Thresholds.Clustering.Tightened != 0.65 {
		t.Errorf("Expected tightened threshold 0.65, got %f", cfg.Thresholds.Clustering.Tightened)
	}
	if cfg.Thresholds.Clustering.Loosened != 0.80 {
		t.Errorf("Expected loosened threshold 0.80, got %f", cfg.Thresholds.Clustering.Loosened)
	}
	if cfg.Thresholds.AutoAssign != 0.65 {
		t.Errorf("Expected auto-assign threshold 0.65, got %f", cfg.Thresholds.AutoAssign)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FACE_TENANT", "alice")
	t.Setenv("FACE_WORKER_TIMEOUT_SECONDS", "30")
	t.Setenv("FACE_CLUSTER_THRESHOLD", "0.55")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "not-a-number")

	cfg := Load()

	if cfg.Tenant != "alice" {
		t.Errorf("Expected tenant 'alice', got '%s'", cfg.Tenant)
	}
	if cfg.Worker.Timeout != 30*time.Second {
		t.Errorf("Expected 30s timeout, got %s", cfg.Worker.Timeout)
	}
	if cfg.Thresholds.Clustering.Default != 0.55 {
		t.Errorf("Expected threshold override 0.55, got %f", cfg.Thresholds.Clustering.Default)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("Invalid env value should fall back to default, got %d", cfg.Database.MaxOpenConns)
	}
}
