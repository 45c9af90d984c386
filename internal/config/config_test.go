package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.MaxIterations != 3 {
		t.Errorf("expected max iterations 3, got %d", cfg.MaxIterations)
	}
	if cfg.QAThreshold != 0.82 {
		t.Errorf("expected qa threshold 0.82, got %f", cfg.QAThreshold)
	}
	if cfg.QARandomReviewRatio != 0.05 {
		t.Errorf("expected qa random review ratio 0.05, got %f", cfg.QARandomReviewRatio)
	}
	if cfg.ModelRuntimeMode != RuntimeModeLocal {
		t.Errorf("expected local runtime mode, got %s", cfg.ModelRuntimeMode)
	}
	if !cfg.AllowAPIStubFallback {
		t.Error("expected stub fallback allowed by default")
	}
	if !cfg.EnableFallbackOrchestrator {
		t.Error("expected fallback orchestrator enabled by default")
	}
	if cfg.RemoteModelMaxRetries != 2 {
		t.Errorf("expected 2 remote model retries, got %d", cfg.RemoteModelMaxRetries)
	}
	if cfg.CallbackMaxRetries != 3 {
		t.Errorf("expected 3 callback retries, got %d", cfg.CallbackMaxRetries)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(`
app_env: staging
max_iterations: 5
qa_threshold: 0.9
model_runtime_mode: api
model_api_base_url: https://models.example.com
safety_override_allow_rules:
  - high_risk_face_swap
`), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.AppEnv != "staging" {
		t.Errorf("expected staging, got %s", cfg.AppEnv)
	}
	if cfg.MaxIterations != 5 {
		t.Errorf("expected 5, got %d", cfg.MaxIterations)
	}
	if cfg.QAThreshold != 0.9 {
		t.Errorf("expected 0.9, got %f", cfg.QAThreshold)
	}
	if cfg.ModelRuntimeMode != RuntimeModeAPI {
		t.Errorf("expected api mode, got %s", cfg.ModelRuntimeMode)
	}
	if len(cfg.SafetyOverrideAllowRules) != 1 || cfg.SafetyOverrideAllowRules[0] != "high_risk_face_swap" {
		t.Errorf("unexpected allow rules: %#v", cfg.SafetyOverrideAllowRules)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("max_iterations: 5\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("MAX_ITERATIONS", "7")
	t.Setenv("MODEL_RUNTIME_MODE", "api")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.MaxIterations != 7 {
		t.Errorf("env should override file: got %d", cfg.MaxIterations)
	}
	if cfg.ModelRuntimeMode != RuntimeModeAPI {
		t.Errorf("env should override file: got %s", cfg.ModelRuntimeMode)
	}
}

func TestLoadFromEnvOnly(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgresql://db/editpipeline")
	t.Setenv("LOCAL_API_TOKEN", "tok-a, tok-b")
	t.Setenv("QA_RANDOM_REVIEW_RATIO", "0.2")
	t.Setenv("REMOTE_MODEL_TIMEOUT_SECONDS", "45")
	t.Setenv("CALLBACK_TIMEOUT_SECONDS", "15")
	t.Setenv("HIGH_RISK_REVIEW_KEYWORDS", "deepfake, nonconsensual")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DatabaseURL != "postgresql://db/editpipeline" {
		t.Errorf("unexpected database url: %s", cfg.DatabaseURL)
	}
	if len(cfg.LocalAPITokens) != 2 || cfg.LocalAPITokens[0] != "tok-a" || cfg.LocalAPITokens[1] != "tok-b" {
		t.Errorf("unexpected tokens: %#v", cfg.LocalAPITokens)
	}
	if cfg.QARandomReviewRatio != 0.2 {
		t.Errorf("expected 0.2, got %f", cfg.QARandomReviewRatio)
	}
	if cfg.RemoteModelTimeout != 45*time.Second {
		t.Errorf("expected 45s, got %s", cfg.RemoteModelTimeout)
	}
	if cfg.CallbackTimeout != 15*time.Second {
		t.Errorf("expected 15s, got %s", cfg.CallbackTimeout)
	}
	if len(cfg.HighRiskReviewKeywords) != 2 {
		t.Errorf("expected 2 keywords, got %#v", cfg.HighRiskReviewKeywords)
	}
}

func TestValidateRejectsBadRuntimeMode(t *testing.T) {
	t.Setenv("MODEL_RUNTIME_MODE", "quantum")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected validation error for unknown runtime mode")
	}
}

func TestValidateRejectsZeroIterations(t *testing.T) {
	t.Setenv("MAX_ITERATIONS", "0")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected validation error for zero max iterations")
	}
}
