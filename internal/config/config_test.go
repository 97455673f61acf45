package config_test

import (
	"testing"
	"time"

	"github.com/astrochat/relay/internal/config"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SF_MYDOMAIN", "example.my.salesforce.com")
	t.Setenv("AF_CONSUMER_KEY", "key")
	t.Setenv("AF_CONSUMER_SECRET", "secret")
	t.Setenv("AF_AGENT_ID", "A1")

	// Neutralize optional variables the host environment might carry.
	t.Setenv("AF_CONTACT_SFID", "")
	t.Setenv("AF_API_BASE", "")
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("SESSION_TTL_MINUTES", "")
}

func TestLoadDerivesEndpoints(t *testing.T) {
	setRequired(t)
	t.Setenv("AF_CONTACT_SFID", "003AB0000099XYZ")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	sf := cfg.Salesforce
	if got := sf.TokenURL(); got != "https://example.my.salesforce.com/services/oauth2/token" {
		t.Fatalf("unexpected token URL: %s", got)
	}
	if got := sf.InstanceEndpoint(); got != "https://example.my.salesforce.com" {
		t.Fatalf("unexpected instance endpoint: %s", got)
	}
	if got := sf.SessionURL(); got != "https://api.salesforce.com/einstein/ai-agent/v1/agents/A1/sessions" {
		t.Fatalf("unexpected session URL: %s", got)
	}
	if got := sf.StreamURL("S1"); got != "https://api.salesforce.com/einstein/ai-agent/v1/sessions/S1/messages/stream" {
		t.Fatalf("unexpected stream URL: %s", got)
	}
}

func TestLoadRequiresCoreVariables(t *testing.T) {
	setRequired(t)
	t.Setenv("AF_CONSUMER_SECRET", "")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error when AF_CONSUMER_SECRET is missing")
	}
}

func TestLoadSessionDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Session.TTL != 30*time.Minute {
		t.Fatalf("unexpected default TTL: %v", cfg.Session.TTL)
	}
	if len(cfg.Session.Secret) != 0 {
		t.Fatal("expected empty secret when SESSION_SECRET unset")
	}
}

func TestLoadSessionOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SESSION_TTL_MINUTES", "90")
	t.Setenv("SESSION_SECRET", "super-secret")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Session.TTL != 90*time.Minute {
		t.Fatalf("unexpected TTL: %v", cfg.Session.TTL)
	}
	if string(cfg.Session.Secret) != "super-secret" {
		t.Fatalf("unexpected secret: %q", cfg.Session.Secret)
	}
}

func TestLoadRejectsBadTTL(t *testing.T) {
	setRequired(t)
	t.Setenv("SESSION_TTL_MINUTES", "zero")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for non-numeric SESSION_TTL_MINUTES")
	}
}

func TestLoadCustomAPIBase(t *testing.T) {
	setRequired(t)
	t.Setenv("AF_API_BASE", "http://127.0.0.1:9999/")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if got := cfg.Salesforce.SessionURL(); got != "http://127.0.0.1:9999/agents/A1/sessions" {
		t.Fatalf("unexpected session URL: %s", got)
	}
}
