package config

import "time"

// Config represents the complete smartlead-bridge configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Listen  string        `yaml:"listen"`
	Webhook WebhookConfig `yaml:"webhook"`
	Forward ForwardConfig `yaml:"forward"`
	Capture CaptureConfig `yaml:"capture,omitempty"`

	// SourceHash is the blake3 hash of the loaded config file (empty when
	// running on built-in defaults). Logged at startup, never serialized.
	SourceHash string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// WebhookConfig defines the inbound webhook endpoint.
type WebhookConfig struct {
	// Path is the URL path Smartlead posts to (default: /smartlead/webhook).
	Path string `yaml:"path"`

	// Secret is the shared webhook secret. Empty means the endpoint is open;
	// that is an operator choice, not a fallback.
	Secret string `yaml:"secret,omitempty"`

	// MaxBodySize accepts plain bytes or KB/MB/GB suffixes (default: 512KB).
	MaxBodySize string `yaml:"max_body_size,omitempty"`

	// DedupeTTLSeconds bounds how long a fingerprint suppresses re-forwarding.
	DedupeTTLSeconds int `yaml:"dedupe_ttl_seconds"`

	// AcceptedEvents lists event types that get forwarded (uppercase-normalized).
	AcceptedEvents []string `yaml:"accepted_events"`

	// LogPayloads controls whether raw payloads reach the log and capture store.
	LogPayloads bool `yaml:"log_payloads"`

	// MaxBodyBytes is MaxBodySize resolved to bytes during Load.
	MaxBodyBytes int64 `yaml:"-"`
}

// ForwardConfig defines the downstream agent hook call.
type ForwardConfig struct {
	URL       string `yaml:"url,omitempty"`
	Token     string `yaml:"token,omitempty"`
	TimeoutMS int    `yaml:"timeout_ms"`
	Channel   string `yaml:"channel,omitempty"`
	AgentID   string `yaml:"agent_id,omitempty"`
	To        string `yaml:"to,omitempty"`
	Model     string `yaml:"model,omitempty"`
	WakeMode  string `yaml:"wake_mode"`
}

// CaptureConfig defines the optional sqlite event log.
type CaptureConfig struct {
	Path string `yaml:"path,omitempty"`
}

// DedupeTTL returns the dedupe window as a duration.
func (w WebhookConfig) DedupeTTL() time.Duration {
	return time.Duration(w.DedupeTTLSeconds) * time.Second
}

// Timeout returns the forward timeout as a duration.
func (f ForwardConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutMS) * time.Millisecond
}

// Configured reports whether forwarding has both a URL and a token.
func (f ForwardConfig) Configured() bool {
	return f.URL != "" && f.Token != ""
}

// Default values and clamp bounds.
const (
	DefaultWebhookPath      = "/smartlead/webhook"
	DefaultMaxBodySize      = "512KB"
	DefaultMaxBodyBytes     = 512 * 1024
	DefaultDedupeTTLSeconds = 900
	MinDedupeTTLSeconds     = 1
	MaxDedupeTTLSeconds     = 86400
	DefaultForwardTimeoutMS = 15000
	MinForwardTimeoutMS     = 1000
	MaxForwardTimeoutMS     = 120000
	DefaultReplyEvent       = "EMAIL_REPLY"
)

// Defaults returns a Config with built-in defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "smartlead-bridge",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Listen: "127.0.0.1:8788",
		Webhook: WebhookConfig{
			Path:             DefaultWebhookPath,
			MaxBodySize:      DefaultMaxBodySize,
			MaxBodyBytes:     DefaultMaxBodyBytes,
			DedupeTTLSeconds: DefaultDedupeTTLSeconds,
			AcceptedEvents:   []string{DefaultReplyEvent},
		},
		Forward: ForwardConfig{
			TimeoutMS: DefaultForwardTimeoutMS,
			WakeMode:  "now",
		},
	}
}
