package config

import (
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
openai:
  api_key: test-key
odoo:
  base_url: https://erp.example.com
whatsapp:
  token: wa-token
  phone_number_id: "123456"
  verify_token: verify-me
`

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("default log format = %q, want json", cfg.Logging.Format)
	}
	if cfg.Session.TTL != 24*time.Hour {
		t.Errorf("default TTL = %v, want 24h", cfg.Session.TTL)
	}
	if cfg.Session.CleanupInterval != time.Hour {
		t.Errorf("default cleanup interval = %v, want 1h", cfg.Session.CleanupInterval)
	}
	if cfg.WhatsApp.WordsLimit != 1500 {
		t.Errorf("default words limit = %d, want 1500", cfg.WhatsApp.WordsLimit)
	}
	if cfg.WhatsApp.APIVersion != "v22.0" {
		t.Errorf("default api version = %q, want v22.0", cfg.WhatsApp.APIVersion)
	}
	if cfg.Odoo.TokenRenewalBuffer != 300*time.Second {
		t.Errorf("default token buffer = %v, want 300s", cfg.Odoo.TokenRenewalBuffer)
	}
	if cfg.Session.MaxIterations != 10 {
		t.Errorf("default max iterations = %d, want 10", cfg.Session.MaxIterations)
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-from-env")

	yaml := strings.Replace(minimalYAML, "test-key", "${TEST_OPENAI_KEY}", 1)
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.OpenAI.APIKey != "sk-from-env" {
		t.Errorf("api key = %q, want expanded env value", cfg.OpenAI.APIKey)
	}
}

func TestParse_MissingRequired(t *testing.T) {
	cases := []struct {
		name   string
		remove string
	}{
		{"no openai key", "api_key: test-key"},
		{"no whatsapp token", "token: wa-token"},
		{"no verify token", "verify_token: verify-me"},
		{"no odoo url", "base_url: https://erp.example.com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			yaml := strings.Replace(minimalYAML, tc.remove, "", 1)
			if _, err := Parse([]byte(yaml)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidate_ReasoningEffort(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	for _, effort := range []string{"", "minimal", "low", "medium", "high"} {
		cfg.OpenAI.ReasoningEffort = effort
		if err := cfg.Validate(); err != nil {
			t.Errorf("effort %q should be valid: %v", effort, err)
		}
	}

	cfg.OpenAI.ReasoningEffort = "turbo"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown reasoning effort")
	}
}
