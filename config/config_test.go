package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, "server:\n  addr: \":9090\"\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Redis.TTL != 5*time.Minute {
		t.Errorf("unexpected redis ttl: %v", cfg.Redis.TTL)
	}
	if cfg.Models.BootstrapSamples != 100 || cfg.Models.Seed != 42 {
		t.Errorf("unexpected model defaults: %+v", cfg.Models)
	}
	if cfg.Anomaly.Contamination != 0.1 || cfg.Insights.TrendThreshold != 0.1 {
		t.Errorf("unexpected analysis defaults: %+v %+v", cfg.Anomaly, cfg.Insights)
	}
	if cfg.Stream.WindowSize != 50 {
		t.Errorf("unexpected window size: %d", cfg.Stream.WindowSize)
	}

	opts := cfg.ModelOptions()
	if opts.MinSamples != 10 || opts.ValidationSplit != 0.2 || opts.RidgeLambda != 1 {
		t.Errorf("unexpected model options: %+v", opts)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeTempConfig(t, `
redis:
  addr: "cache:6379"
  ttl: 30s
anomaly:
  contamination: 0.05
insights:
  trendThreshold: 0.5
stream:
  windowSize: 20
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Redis.Addr != "cache:6379" || cfg.Redis.TTL != 30*time.Second {
		t.Errorf("unexpected redis config: %+v", cfg.Redis)
	}
	if cfg.DetectorConfig().Contamination != 0.05 {
		t.Errorf("unexpected contamination: %v", cfg.DetectorConfig().Contamination)
	}
	if cfg.InsightsConfig().TrendThreshold != 0.5 {
		t.Errorf("unexpected trend threshold: %v", cfg.InsightsConfig().TrendThreshold)
	}
	if cfg.EngineConfig().WindowSize != 20 {
		t.Errorf("unexpected window size: %d", cfg.EngineConfig().WindowSize)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("GREENCHAIN_REDIS_ADDR", "env-redis:6379")
	cfg, err := Load(writeTempConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Redis.Addr != "env-redis:6379" {
		t.Errorf("env override ignored: %s", cfg.Redis.Addr)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	if _, err := Load(writeTempConfig(t, "models:\n  bootstrapSamples: 10\n")); err == nil {
		t.Fatalf("expected error for too few bootstrap samples")
	}
	if _, err := Load(writeTempConfig(t, "models:\n  ridgeLambda: -1\n")); err == nil {
		t.Fatalf("expected error for a negative ridge lambda")
	}
	if _, err := Load(writeTempConfig(t, "anomaly:\n  contamination: 0.7\n")); err == nil {
		t.Fatalf("expected error for contamination above 0.5")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}
