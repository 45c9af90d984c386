// Package config provides configuration loading for the edit-pipeline
// service. Configuration sources (in priority order): env vars > config
// file > defaults, mirroring the layered load used throughout this codebase.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RuntimeMode selects the EditExecutor backend.
type RuntimeMode string

const (
	RuntimeModeAPI   RuntimeMode = "api"
	RuntimeModeLocal RuntimeMode = "local"
)

// Config holds all process-wide configuration. It is built once at startup
// and treated as immutable thereafter; test harnesses substitute it at the
// boundary rather than mutating it in place.
type Config struct {
	AppEnv      string `yaml:"app_env"`
	DatabaseURL string `yaml:"database_url"`

	// LocalAPITokens is the comma-separated LOCAL_API_TOKEN list accepted on
	// /api/v1/* paths. Empty means the API runs unauthenticated.
	LocalAPITokens []string `yaml:"local_api_tokens"`

	MaxIterations       int     `yaml:"max_iterations"`
	QAThreshold         float64 `yaml:"qa_threshold"`
	QARandomReviewRatio float64 `yaml:"qa_random_review_ratio"`

	RawRetentionDays          int `yaml:"raw_retention_days"`
	IntermediateRetentionDays int `yaml:"intermediate_retention_days"`
	OutputRetentionDays       int `yaml:"output_retention_days"`

	ModelRuntimeMode    RuntimeMode `yaml:"model_runtime_mode"`
	ModelAPIBaseURL     string      `yaml:"model_api_base_url"`
	ModelAPIKey         string      `yaml:"model_api_key"`
	AllowLocalModelInstall bool     `yaml:"allow_local_model_install"`
	AllowAPIStubFallback   bool     `yaml:"allow_api_stub_fallback"`

	RemoteModelTimeout    time.Duration `yaml:"remote_model_timeout"`
	RemoteModelMaxRetries int           `yaml:"remote_model_max_retries"`

	EnableFallbackOrchestrator bool `yaml:"enable_fallback_orchestrator"`

	CallbackTimeout    time.Duration `yaml:"callback_timeout"`
	CallbackMaxRetries int           `yaml:"callback_max_retries"`

	SafetyAdminToken         string   `yaml:"safety_admin_token"`
	SafetyOverrideAllowRules []string `yaml:"safety_override_allow_rules"`
	HighRiskReviewKeywords   []string `yaml:"high_risk_review_keywords"`

	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	SlackWebhookURL string `yaml:"slack_webhook_url"`
	RedisURL        string `yaml:"redis_url"`

	TemporalHostPort  string `yaml:"temporal_host_port"`
	TemporalNamespace string `yaml:"temporal_namespace"`
	TemporalTaskQueue string `yaml:"temporal_task_queue"`

	ListenAddr string `yaml:"listen_addr"`
}

// Default returns configuration with the same defaults as the reference
// implementation's Settings dataclass.
func Default() Config {
	return Config{
		AppEnv:                     "development",
		DatabaseURL:                "postgresql://localhost:5432/video_platform",
		LocalAPITokens:             nil,
		MaxIterations:              3,
		QAThreshold:                0.82,
		QARandomReviewRatio:        0.05,
		RawRetentionDays:           30,
		IntermediateRetentionDays: 7,
		OutputRetentionDays:        90,
		ModelRuntimeMode:           RuntimeModeLocal,
		ModelAPIBaseURL:            "https://model.internal",
		ModelAPIKey:                "",
		AllowLocalModelInstall:     false,
		AllowAPIStubFallback:       true,
		RemoteModelTimeout:         30 * time.Second,
		RemoteModelMaxRetries:      2,
		EnableFallbackOrchestrator: true,
		CallbackTimeout:            10 * time.Second,
		CallbackMaxRetries:         3,
		SafetyAdminToken:           "",
		SafetyOverrideAllowRules:   nil,
		HighRiskReviewKeywords:     nil,
		TemporalHostPort:           "localhost:7233",
		TemporalNamespace:          "default",
		TemporalTaskQueue:          "editpipeline.jobs",
		ListenAddr:                 ":8080",
	}
}

// Load reads configuration from an optional YAML file, then overlays
// environment variables, and finally validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only, with no
// backing file. cmd/editpipelined loads its configuration through it.
func LoadFromEnv() (Config, error) {
	return Load("")
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("APP_ENV"); ok {
		c.AppEnv = v
	}
	if v, ok := os.LookupEnv("DATABASE_URL"); ok {
		c.DatabaseURL = v
	}
	if v, ok := os.LookupEnv("LOCAL_API_TOKEN"); ok {
		c.LocalAPITokens = splitCSV(v)
	}
	if v, ok := envInt("MAX_ITERATIONS"); ok {
		c.MaxIterations = v
	}
	if v, ok := envFloat("QA_THRESHOLD"); ok {
		c.QAThreshold = v
	}
	if v, ok := envFloat("QA_RANDOM_REVIEW_RATIO"); ok {
		c.QARandomReviewRatio = v
	}
	if v, ok := envInt("RAW_RETENTION_DAYS"); ok {
		c.RawRetentionDays = v
	}
	if v, ok := envInt("INTERMEDIATE_RETENTION_DAYS"); ok {
		c.IntermediateRetentionDays = v
	}
	if v, ok := envInt("OUTPUT_RETENTION_DAYS"); ok {
		c.OutputRetentionDays = v
	}
	if v, ok := os.LookupEnv("MODEL_RUNTIME_MODE"); ok {
		c.ModelRuntimeMode = RuntimeMode(v)
	}
	if v, ok := os.LookupEnv("MODEL_API_BASE_URL"); ok {
		c.ModelAPIBaseURL = v
	}
	if v, ok := os.LookupEnv("MODEL_API_KEY"); ok {
		c.ModelAPIKey = v
	}
	if v, ok := envBool("ALLOW_LOCAL_MODEL_INSTALL"); ok {
		c.AllowLocalModelInstall = v
	}
	if v, ok := envBool("ALLOW_API_STUB_FALLBACK"); ok {
		c.AllowAPIStubFallback = v
	}
	if v, ok := envInt("REMOTE_MODEL_TIMEOUT_SECONDS"); ok {
		c.RemoteModelTimeout = time.Duration(v) * time.Second
	}
	if v, ok := envInt("REMOTE_MODEL_MAX_RETRIES"); ok {
		c.RemoteModelMaxRetries = v
	}
	if v, ok := envBool("ENABLE_FALLBACK_ORCHESTRATOR"); ok {
		c.EnableFallbackOrchestrator = v
	}
	if v, ok := envInt("CALLBACK_TIMEOUT_SECONDS"); ok {
		c.CallbackTimeout = time.Duration(v) * time.Second
	}
	if v, ok := envInt("CALLBACK_MAX_RETRIES"); ok {
		c.CallbackMaxRetries = v
	}
	if v, ok := os.LookupEnv("SAFETY_ADMIN_TOKEN"); ok {
		c.SafetyAdminToken = v
	}
	if v, ok := os.LookupEnv("SAFETY_OVERRIDE_ALLOW_RULES"); ok {
		c.SafetyOverrideAllowRules = splitCSV(v)
	}
	if v, ok := os.LookupEnv("HIGH_RISK_REVIEW_KEYWORDS"); ok {
		c.HighRiskReviewKeywords = splitCSV(v)
	}
	if v, ok := os.LookupEnv("ANTHROPIC_API_KEY"); ok {
		c.AnthropicAPIKey = v
	}
	if v, ok := os.LookupEnv("SLACK_WEBHOOK_URL"); ok {
		c.SlackWebhookURL = v
	}
	if v, ok := os.LookupEnv("REDIS_URL"); ok {
		c.RedisURL = v
	}
	if v, ok := os.LookupEnv("TEMPORAL_HOST_PORT"); ok {
		c.TemporalHostPort = v
	}
	if v, ok := os.LookupEnv("TEMPORAL_NAMESPACE"); ok {
		c.TemporalNamespace = v
	}
	if v, ok := os.LookupEnv("TEMPORAL_TASK_QUEUE"); ok {
		c.TemporalTaskQueue = v
	}
	if v, ok := os.LookupEnv("LISTEN_ADDR"); ok {
		c.ListenAddr = v
	}
}

func (c Config) validate() error {
	if c.ModelRuntimeMode != RuntimeModeAPI && c.ModelRuntimeMode != RuntimeModeLocal {
		return fmt.Errorf("config: MODEL_RUNTIME_MODE must be %q or %q, got %q", RuntimeModeAPI, RuntimeModeLocal, c.ModelRuntimeMode)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("config: MAX_ITERATIONS must be >= 1, got %d", c.MaxIterations)
	}
	if c.QAThreshold < 0 || c.QAThreshold > 1 {
		return fmt.Errorf("config: QA_THRESHOLD must be in [0,1], got %f", c.QAThreshold)
	}
	return nil
}

// APITokens returns the configured local API tokens with whitespace trimmed
// and empty entries removed.
func (c Config) APITokens() []string {
	out := make([]string, 0, len(c.LocalAPITokens))
	for _, t := range c.LocalAPITokens {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// SafetyOverrideAllowRuleSet returns the configured override allow-list as a
// lookup set.
func (c Config) SafetyOverrideAllowRuleSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.SafetyOverrideAllowRules))
	for _, r := range c.SafetyOverrideAllowRules {
		set[r] = struct{}{}
	}
	return set
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(key string) (float64, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envBool(key string) (bool, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}
