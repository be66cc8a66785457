package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "relayd.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  extra_field: true
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8787 {
		t.Fatalf("server.port = %d, want default 8787", cfg.Server.Port)
	}
	if cfg.LLM.DefaultProvider != "openai" {
		t.Fatalf("llm.default_provider = %q, want openai", cfg.LLM.DefaultProvider)
	}
	if _, ok := cfg.LLM.Providers["openai"]; !ok {
		t.Fatalf("expected default openai provider entry")
	}
	if cfg.Settings.MaximumMessageContext == 0 {
		t.Fatalf("expected maximum_message_context default to be applied")
	}
}

func TestLoadValidatesDefaultProvider(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: bedrock
  providers:
    openai: {enabled: true}
`)
	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "default_provider") {
		t.Fatalf("expected default_provider error, got %v", err)
	}
}

func TestLoadValidatesFallbackChainReferences(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: openai
  fallback_chain: ["anthropic", "does-not-exist"]
  providers:
    openai: {enabled: true}
    anthropic: {enabled: true}
`)
	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "does-not-exist") {
		t.Fatalf("expected unknown fallback provider error, got %v", err)
	}
}

func TestLoadValidatesBedrockRequiresRegion(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: bedrock
  providers:
    bedrock: {enabled: true}
`)
	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "region") {
		t.Fatalf("expected region error, got %v", err)
	}
}

func TestLoadExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("RELAYD_TEST_HOST", "10.0.0.5")
	path := writeConfig(t, `
server:
  host: "${RELAYD_TEST_HOST}"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Host != "10.0.0.5" {
		t.Fatalf("server.host = %q, want expanded env value", cfg.Server.Host)
	}
}

func TestEnvKeyStore_ResolvesConfiguredEnvVar(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test-123")
	cfg := &Config{LLM: LLMConfig{Providers: map[string]LLMVendor{
		"openai": {Enabled: true, APIKeyEnv: "TEST_OPENAI_KEY"},
	}}}
	store := NewEnvKeyStore(cfg)

	key, ok := store.Key(nil, "openai")
	if !ok || key != "sk-test-123" {
		t.Fatalf("Key() = (%q, %v), want (sk-test-123, true)", key, ok)
	}

	if _, ok := store.Key(nil, "anthropic"); ok {
		t.Fatalf("expected no key for unconfigured provider")
	}
}
