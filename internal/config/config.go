// Package config loads the relayd server's YAML configuration file and
// applies defaults and validation at the boundary.
package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goldbox/relay/internal/inbox"
	"github.com/goldbox/relay/pkg/models"
)

// Config is the top-level relayd configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Session     SessionConfig     `yaml:"session"`
	Inbox       InboxConfig       `yaml:"inbox"`
	LLM         LLMConfig         `yaml:"llm"`
	Settings    SettingsConfig    `yaml:"settings"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// GraceWindow is how long a ClientInbox survives a closed ClientLink
	// before it is torn down, in case of a fast reconnect.
	GraceWindow time.Duration `yaml:"grace_window"`
}

type SessionConfig struct {
	// IdleTimeout is how long a SessionStore entry survives without a turn
	// before AutoEvict reclaims it.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

type InboxConfig struct {
	MaxItemsPerLog  int           `yaml:"max_items_per_log"`
	RetentionWindow time.Duration `yaml:"retention_window"`
}

// LLMConfig configures the ProviderGateway: which backends are registered,
// their base URLs, and the fallback order tried on transport failure.
// API keys are never read from the YAML file; they come from the
// environment, so a committed config file never carries a secret.
type LLMConfig struct {
	DefaultProvider string               `yaml:"default_provider"`
	FallbackChain   []string             `yaml:"fallback_chain"`
	Providers       map[string]LLMVendor `yaml:"providers"`
}

type LLMVendor struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Region  string `yaml:"region"` // bedrock only
	APIKeyEnv string `yaml:"api_key_env"`
}

// SettingsConfig is the settings section of relayd.yaml, defaulted and
// range-checked at load. The server does not apply it to clients: a link
// starts from models.DefaultSettings until a settings_sync frame arrives.
type SettingsConfig struct {
	General               LLMFamilyYAML `yaml:"general"`
	Tactical              LLMFamilyYAML `yaml:"tactical"`
	MaximumMessageContext int           `yaml:"maximum_message_context"`
	AIRole                string        `yaml:"ai_role"`
}

type LLMFamilyYAML struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout_sec"`
	MaxRetries int    `yaml:"max_retries"`
}

type MaintenanceConfig struct {
	Enabled bool   `yaml:"enabled"`
	// Cron is a standard 5-field cron expression or an "@" descriptor such
	// as the default "@every 5m", for the eviction sweep.
	Cron string `yaml:"cron"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads path, expands environment variables, decodes exactly one
// YAML document, then applies defaults and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := decoder.Decode(new(struct{})); err != io.EOF {
		return nil, fmt.Errorf("parse config: expected a single document")
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8787
	}
	if cfg.Server.GraceWindow <= 0 {
		cfg.Server.GraceWindow = 2 * time.Minute
	}
	if cfg.Session.IdleTimeout <= 0 {
		cfg.Session.IdleTimeout = time.Hour
	}

	limits := inbox.DefaultLimits()
	if cfg.Inbox.MaxItemsPerLog <= 0 {
		cfg.Inbox.MaxItemsPerLog = limits.MaxItemsPerLog
	}
	if cfg.Inbox.RetentionWindow <= 0 {
		cfg.Inbox.RetentionWindow = limits.RetentionWindow
	}

	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = "openai"
	}
	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = map[string]LLMVendor{
			"openai":    {Enabled: true, APIKeyEnv: "OPENAI_API_KEY"},
			"anthropic": {Enabled: true, APIKeyEnv: "ANTHROPIC_API_KEY"},
		}
	}

	defaults := models.DefaultSettings()
	applyFamilyDefaults(&cfg.Settings.General, defaults.General)
	applyFamilyDefaults(&cfg.Settings.Tactical, defaults.Tactical)
	cfg.Settings.MaximumMessageContext = models.ValidateNumeric(
		orDefault(cfg.Settings.MaximumMessageContext, defaults.MaximumMessageContext),
		models.MinMaximumMessageContext, models.MaxMaximumMessageContext, defaults.MaximumMessageContext,
	)
	if cfg.Settings.AIRole == "" {
		cfg.Settings.AIRole = defaults.AIRole
	}

	if cfg.Maintenance.Cron == "" {
		cfg.Maintenance.Cron = "@every 5m"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyFamilyDefaults(family *LLMFamilyYAML, defaultFamily models.LLMFamilyConfig) {
	if family.Provider == "" {
		family.Provider = defaultFamily.Provider
	}
	if family.Model == "" {
		family.Model = defaultFamily.Model
	}
	family.TimeoutSec = models.ValidateNumeric(
		orDefault(family.TimeoutSec, defaultFamily.TimeoutSec),
		models.MinTimeoutSec, models.MaxTimeoutSec, defaultFamily.TimeoutSec,
	)
	family.MaxRetries = models.ValidateNumeric(
		orDefault(family.MaxRetries, defaultFamily.MaxRetries),
		models.MinMaxRetries, models.MaxMaxRetries, defaultFamily.MaxRetries,
	)
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// ToSettings converts the loaded SettingsConfig into a models.Settings
// bundle. Nothing in the server calls it; links and ingress use
// models.DefaultSettings or the client's settings_sync values.
func (c *Config) ToSettings() models.Settings {
	return models.Settings{
		General: models.LLMFamilyConfig{
			Provider:   c.Settings.General.Provider,
			Model:      c.Settings.General.Model,
			TimeoutSec: c.Settings.General.TimeoutSec,
			MaxRetries: c.Settings.General.MaxRetries,
		},
		Tactical: models.LLMFamilyConfig{
			Provider:   c.Settings.Tactical.Provider,
			Model:      c.Settings.Tactical.Model,
			TimeoutSec: c.Settings.Tactical.TimeoutSec,
			MaxRetries: c.Settings.Tactical.MaxRetries,
		},
		MaximumMessageContext: c.Settings.MaximumMessageContext,
		AIRole:                c.Settings.AIRole,
		ChatProcessingMode:    models.ChatProcessingGeneral,
	}
}

// ToInboxLimits converts the loaded InboxConfig into inbox.Limits.
func (c *Config) ToInboxLimits() inbox.Limits {
	return inbox.Limits{
		MaxItemsPerLog:  c.Inbox.MaxItemsPerLog,
		RetentionWindow: c.Inbox.RetentionWindow,
	}
}

// ValidationError collects every problem found in one Load call instead of
// failing on the first one.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validate(cfg *Config) error {
	var issues []string

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		issues = append(issues, "server.port must be between 1 and 65535")
	}
	if cfg.Session.IdleTimeout <= 0 {
		issues = append(issues, "session.idle_timeout must be positive")
	}
	if _, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; !ok {
		issues = append(issues, fmt.Sprintf("llm.providers missing entry for default_provider %q", cfg.LLM.DefaultProvider))
	}
	for _, id := range cfg.LLM.FallbackChain {
		if _, ok := cfg.LLM.Providers[id]; !ok {
			issues = append(issues, fmt.Sprintf("llm.fallback_chain references unknown provider %q", id))
		}
	}
	for name, vendor := range cfg.LLM.Providers {
		switch name {
		case "openai", "anthropic", "bedrock", "local":
		default:
			issues = append(issues, fmt.Sprintf("llm.providers key %q is not a recognized backend", name))
		}
		if name == "bedrock" && vendor.Enabled && vendor.Region == "" {
			issues = append(issues, "llm.providers.bedrock.region is required when bedrock is enabled")
		}
	}
	if cfg.Maintenance.Enabled {
		if _, err := parseCronForValidation(cfg.Maintenance.Cron); err != nil {
			issues = append(issues, fmt.Sprintf("maintenance.cron is invalid: %v", err))
		}
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		issues = append(issues, "logging.level must be debug, info, warn, or error")
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		issues = append(issues, "logging.format must be json or text")
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// parseCronForValidation does a cheap field-count check rather than
// importing robfig/cron here; the maintenance package parses the real
// schedule at startup, where a malformed expression still fails loudly.
func parseCronForValidation(expr string) (string, error) {
	if strings.HasPrefix(expr, "@") {
		return expr, nil
	}
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return "", fmt.Errorf("expected 5 fields, got %d", len(fields))
	}
	return expr, nil
}

// EnvKeyStore implements providers.KeyStore by reading the environment
// variable named in each provider's api_key_env. A committed config file
// never carries a secret; only the variable name does. This is the
// simplest of the KeyStore interface's possible implementations — the
// on-disk encrypted key store spec.md leaves interface-only (§1 Non-goals)
// is not built here.
type EnvKeyStore struct {
	providers map[string]LLMVendor
}

func NewEnvKeyStore(cfg *Config) *EnvKeyStore {
	return &EnvKeyStore{providers: cfg.LLM.Providers}
}

func (s *EnvKeyStore) Key(_ context.Context, providerID string) (string, bool) {
	vendor, ok := s.providers[providerID]
	if !ok || vendor.APIKeyEnv == "" {
		return "", false
	}
	value := strings.TrimSpace(os.Getenv(vendor.APIKeyEnv))
	if value == "" {
		return "", false
	}
	return value, true
}
