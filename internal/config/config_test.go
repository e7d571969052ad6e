package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServiceName != "ivr-gateway" {
		t.Errorf("ServiceName = %q, want ivr-gateway", cfg.ServiceName)
	}
	if cfg.RTPPort != 20000 {
		t.Errorf("RTPPort = %d, want 20000", cfg.RTPPort)
	}
	if cfg.RTPInfoGlob != "/tmp/rtp_info_*.txt" {
		t.Errorf("RTPInfoGlob = %q, want default glob", cfg.RTPInfoGlob)
	}
	if cfg.Postgres.Host != "localhost" || cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("unexpected nested defaults: postgres=%+v redis=%+v", cfg.Postgres, cfg.Redis)
	}
}

func TestLoadReadsEnvPathDotenvFile(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	envFile := filepath.Join(dir, "custom.env")
	if err := os.WriteFile(envFile, []byte("SERVICE_NAME=ivr-gateway-staging\nRTP_PORT=30000\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_PATH", envFile)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServiceName != "ivr-gateway-staging" {
		t.Errorf("ServiceName = %q, want ivr-gateway-staging", cfg.ServiceName)
	}
	if cfg.RTPPort != 30000 {
		t.Errorf("RTPPort = %d, want 30000", cfg.RTPPort)
	}
}

func TestLoadOverridesDefaultOperatorNumberAndVADModel(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEFAULT_OPERATOR_NUMBER", "0312345678")
	t.Setenv("VAD_MODEL_PATH", "/opt/libertycall/models/silero.onnx")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultOperatorNumber != "0312345678" {
		t.Errorf("DefaultOperatorNumber = %q, want 0312345678", cfg.DefaultOperatorNumber)
	}
	if cfg.VADModelPath != "/opt/libertycall/models/silero.onnx" {
		t.Errorf("VADModelPath = %q, want silero.onnx path", cfg.VADModelPath)
	}
}

// clearEnv scrubs ENV_PATH so each test starts from pure defaults,
// independent of whatever .env file a developer's shell might otherwise
// pick up via godotenv.Load()'s cwd-relative fallback.
func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_PATH", filepath.Join(t.TempDir(), "nonexistent.env"))
}
