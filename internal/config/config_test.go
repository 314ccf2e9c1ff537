package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Store.Backend != "postgres" {
		t.Errorf("expected default backend postgres, got %q", cfg.Store.Backend)
	}
	if cfg.Store.Dim != 512 {
		t.Errorf("expected default dim 512, got %d", cfg.Store.Dim)
	}
	if cfg.Match.Threshold != 0.6 {
		t.Errorf("expected default threshold 0.6, got %v", cfg.Match.Threshold)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Web.Port)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "local")
	t.Setenv("MATCH_THRESHOLD", "0.75")
	t.Setenv("EMBEDDING_DIM", "128")

	cfg := Load()
	if cfg.Store.Backend != "local" {
		t.Errorf("expected backend local, got %q", cfg.Store.Backend)
	}
	if cfg.Match.Threshold != 0.75 {
		t.Errorf("expected threshold 0.75, got %v", cfg.Match.Threshold)
	}
	if cfg.Store.Dim != 128 {
		t.Errorf("expected dim 128, got %d", cfg.Store.Dim)
	}
}

func TestEnvFloatRejectsOutOfRange(t *testing.T) {
	t.Setenv("MATCH_THRESHOLD", "1.5")
	if cfg := Load(); cfg.Match.Threshold != 0.6 {
		t.Errorf("expected fallback 0.6 for out-of-range threshold, got %v", cfg.Match.Threshold)
	}

	t.Setenv("MATCH_THRESHOLD", "not-a-number")
	if cfg := Load(); cfg.Match.Threshold != 0.6 {
		t.Errorf("expected fallback 0.6 for invalid threshold, got %v", cfg.Match.Threshold)
	}
}

func TestGetPlanLimits(t *testing.T) {
	cfg := Load()

	free := cfg.GetPlanLimits("free")
	if free.MaxUsers != 5 {
		t.Errorf("expected free plan max_users 5, got %d", free.MaxUsers)
	}

	unknown := cfg.GetPlanLimits("does-not-exist")
	if unknown != free {
		t.Errorf("expected unknown plan to fall back to free, got %+v", unknown)
	}
}
