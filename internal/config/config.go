package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates the full service configuration.
type Config struct {
	Server     ServerConfig
	Salesforce SalesforceConfig
	Session    SessionConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	sf, err := loadSalesforceConfig()
	if err != nil {
		return nil, err
	}

	sess, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Salesforce: sf, Session: sess}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow passing ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// SalesforceConfig holds everything needed to reach the Agentforce platform:
// the org's My Domain for the OAuth token exchange and the Einstein AI Agent
// API base for session creation and streaming.
type SalesforceConfig struct {
	MyDomain     string
	ClientID     string
	ClientSecret string
	AgentID      string
	ContactSfid  string
	APIBase      string
}

// TokenURL returns the org's OAuth2 client-credentials endpoint.
func (c SalesforceConfig) TokenURL() string {
	return fmt.Sprintf("https://%s/services/oauth2/token", c.MyDomain)
}

// InstanceEndpoint returns the org endpoint declared at session creation.
func (c SalesforceConfig) InstanceEndpoint() string {
	return "https://" + c.MyDomain
}

// SessionURL returns the Agentforce session-creation endpoint for the agent.
func (c SalesforceConfig) SessionURL() string {
	return fmt.Sprintf("%s/agents/%s/sessions", c.APIBase, c.AgentID)
}

// StreamURL returns the streaming-message endpoint for an agent session.
func (c SalesforceConfig) StreamURL(sessionID string) string {
	return fmt.Sprintf("%s/sessions/%s/messages/stream", c.APIBase, sessionID)
}

func loadSalesforceConfig() (SalesforceConfig, error) {
	cfg := SalesforceConfig{
		MyDomain:     strings.TrimSpace(os.Getenv("SF_MYDOMAIN")),
		ClientID:     strings.TrimSpace(os.Getenv("AF_CONSUMER_KEY")),
		ClientSecret: strings.TrimSpace(os.Getenv("AF_CONSUMER_SECRET")),
		AgentID:      strings.TrimSpace(os.Getenv("AF_AGENT_ID")),
		ContactSfid:  strings.TrimSpace(os.Getenv("AF_CONTACT_SFID")),
		APIBase:      getEnvOrDefault("AF_API_BASE", "https://api.salesforce.com/einstein/ai-agent/v1"),
	}

	required := []struct {
		key string
		val string
	}{
		{"SF_MYDOMAIN", cfg.MyDomain},
		{"AF_CONSUMER_KEY", cfg.ClientID},
		{"AF_CONSUMER_SECRET", cfg.ClientSecret},
		{"AF_AGENT_ID", cfg.AgentID},
	}
	for _, req := range required {
		if req.val == "" {
			return SalesforceConfig{}, fmt.Errorf("missing required environment variable %s", req.key)
		}
	}

	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	return cfg, nil
}

// SessionConfig describes the browser session container.
type SessionConfig struct {
	Secret []byte
	TTL    time.Duration
}

func loadSessionConfig() (SessionConfig, error) {
	ttlMinutes := 30
	if override, err := parseOptionalIntEnv("SESSION_TTL_MINUTES"); err != nil {
		return SessionConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return SessionConfig{}, fmt.Errorf("SESSION_TTL_MINUTES must be at least 1")
		}
		ttlMinutes = *override
	}

	var secret []byte
	if raw := strings.TrimSpace(os.Getenv("SESSION_SECRET")); raw != "" {
		secret = []byte(raw)
	}

	return SessionConfig{
		Secret: secret,
		TTL:    time.Duration(ttlMinutes) * time.Minute,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
