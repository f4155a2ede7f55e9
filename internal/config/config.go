package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port    int `yaml:"port"`
	Workers int `yaml:"workers"` // reply worker pool size
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // session hot-cache TTL
}

type AIConfig struct {
	Provider        string        `yaml:"provider"` // simulated | openai | gemini
	OpenAIKey       string        `yaml:"openai_key"`
	GeminiKey       string        `yaml:"gemini_key"`
	GeminiURL       string        `yaml:"gemini_url"`
	DefaultModel    string        `yaml:"default_model"`
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent AI calls
	MinLatency      time.Duration `yaml:"min_latency"`      // simulated provider only
	MaxLatency      time.Duration `yaml:"max_latency"`
	ContextTokens   int           `yaml:"context_tokens"` // token budget for the reply context
}

type QuotaConfig struct {
	DailyEnabled     bool `yaml:"daily_enabled"`
	HourlyEnabled    bool `yaml:"hourly_enabled"`
	SessionEnabled   bool `yaml:"session_enabled"`
	DailyLimit       int  `yaml:"daily_limit"`
	HourlyLimit      int  `yaml:"hourly_limit"`
	SessionLimit     int  `yaml:"session_limit"`
	WarningThreshold int  `yaml:"warning_threshold"`
}

type SpamConfig struct {
	MinDelay time.Duration `yaml:"min_delay"`
}

type OpsConfig struct {
	SweepInterval       time.Duration `yaml:"sweep_interval"`
	StuckThresholdTicks int           `yaml:"stuck_threshold_ticks"`
	RecoveryCooldown    time.Duration `yaml:"recovery_cooldown"`
}

type LifecycleConfig struct {
	IdleTimeout        time.Duration `yaml:"idle_timeout"`
	MaxSessionDuration time.Duration `yaml:"max_session_duration"`
	HandoffTimeout     time.Duration `yaml:"handoff_timeout"`
	SweepInterval      time.Duration `yaml:"sweep_interval"`
}

type WidgetConfig struct {
	AutoOpenWithMessages bool   `yaml:"auto_open_with_messages"`
	WelcomeMessage       string `yaml:"welcome_message"`
	ContextWindow        int    `yaml:"context_window"` // messages sent to the provider
}

type HandoffConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type IdentityConfig struct {
	URL     string        `yaml:"url"` // empty disables the external gate
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type SecurityConfig struct {
	TokenSecret string        `yaml:"token_secret"` // widget profile token HMAC secret
	TokenTTL    time.Duration `yaml:"token_ttl"`
	RateLimit   int           `yaml:"rate_limit"` // requests/min per profile at the edge
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	AI        AIConfig        `yaml:"ai"`
	Quota     QuotaConfig     `yaml:"quota"`
	Spam      SpamConfig      `yaml:"spam"`
	Ops       OpsConfig       `yaml:"ops"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Widget    WidgetConfig    `yaml:"widget"`
	Handoff   HandoffConfig   `yaml:"handoff"`
	Identity  IdentityConfig  `yaml:"identity"`
	Security  SecurityConfig  `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Workers <= 0 {
		cfg.Server.Workers = 8
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "simulated"
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.AI.MinLatency <= 0 {
		cfg.AI.MinLatency = 500 * time.Millisecond
	}
	if cfg.AI.MaxLatency <= cfg.AI.MinLatency {
		cfg.AI.MaxLatency = cfg.AI.MinLatency + 2*time.Second
	}
	if cfg.AI.ContextTokens <= 0 {
		cfg.AI.ContextTokens = 3000
	}

	if cfg.Quota.WarningThreshold <= 0 {
		cfg.Quota.WarningThreshold = 3
	}
	if cfg.Spam.MinDelay <= 0 {
		cfg.Spam.MinDelay = 2 * time.Second
	}
	if cfg.Ops.SweepInterval <= 0 {
		cfg.Ops.SweepInterval = 10 * time.Second
	}
	if cfg.Ops.StuckThresholdTicks <= 0 {
		cfg.Ops.StuckThresholdTicks = 10
	}
	if cfg.Ops.RecoveryCooldown <= 0 {
		cfg.Ops.RecoveryCooldown = 10 * time.Second
	}
	if cfg.Lifecycle.IdleTimeout <= 0 {
		cfg.Lifecycle.IdleTimeout = 10 * time.Minute
	}
	if cfg.Lifecycle.MaxSessionDuration <= 0 {
		cfg.Lifecycle.MaxSessionDuration = time.Hour
	}
	if cfg.Lifecycle.HandoffTimeout <= 0 {
		cfg.Lifecycle.HandoffTimeout = 2 * time.Minute
	}
	if cfg.Lifecycle.SweepInterval <= 0 {
		cfg.Lifecycle.SweepInterval = 30 * time.Second
	}
	if cfg.Widget.WelcomeMessage == "" {
		cfg.Widget.WelcomeMessage = "Hi! How can we help you today?"
	}
	if cfg.Widget.ContextWindow <= 0 {
		cfg.Widget.ContextWindow = 30
	}
	if cfg.Handoff.Timeout <= 0 {
		cfg.Handoff.Timeout = 10 * time.Second
	}
	if cfg.Security.TokenTTL <= 0 {
		cfg.Security.TokenTTL = 24 * time.Hour
	}
	if cfg.Security.RateLimit <= 0 {
		cfg.Security.RateLimit = 60
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if !dev && cfg.Security.TokenSecret == "" {
		return nil, errors.New("security.token_secret is required outside dev mode")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
