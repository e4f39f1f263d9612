package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Environment fallbacks consulted when the corresponding config field is empty.
// Precedence is explicit config value, then environment, then built-in default.
const (
	EnvWebhookSecret = "SMARTLEAD_WEBHOOK_SECRET"
	EnvForwardURL    = "OPENCLAW_HOOK_URL"
	EnvForwardToken  = "OPENCLAW_HOOK_TOKEN"
	EnvChannel       = "OPENCLAW_CHANNEL"
	EnvAgentID       = "OPENCLAW_AGENT_ID"
	EnvConfigPath    = "SMARTLEAD_BRIDGE_CONFIG"
)

// Load reads and resolves configuration from a YAML file.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: check the path or run with --config", absPath)
	}

	// Apply ${VAR} interpolation before parsing.
	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	resolved, err := finalize(&cfg)
	if err != nil {
		return nil, err
	}

	hash, err := ComputeFileHash(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to hash config: %w", err)
	}
	resolved.SourceHash = hash

	return resolved, nil
}

// LoadOrDefault loads the given path, or discovers one, or falls back to
// built-in defaults plus environment variables when no file exists anywhere.
func LoadOrDefault(configPath string) (*Config, error) {
	if configPath == "" {
		discovered, err := Discover()
		if err != nil {
			// No config anywhere: defaults + env is a supported deployment.
			return finalize(Defaults())
		}
		configPath = discovered
	}
	return Load(configPath)
}

// Discover finds a config file by checking standard locations.
// Priority: $SMARTLEAD_BRIDGE_CONFIG, ~/.config/smartlead-bridge/config.yaml,
// /etc/smartlead-bridge/config.yaml, ./config.yaml.
func Discover() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(homeDir, ".config", "smartlead-bridge", "config.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return userPath, nil
		}
	}

	systemPath := "/etc/smartlead-bridge/config.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath, nil
	}

	localPath := "./config.yaml"
	if _, err := os.Stat(localPath); err == nil {
		return localPath, nil
	}

	return "", fmt.Errorf("no config found (checked: $%s, ~/.config/smartlead-bridge, /etc/smartlead-bridge, ./config.yaml)", EnvConfigPath)
}

// finalize applies defaults, environment fallbacks, clamps, and validation.
func finalize(cfg *Config) (*Config, error) {
	applyDefaults(cfg)
	applyEnvFallbacks(cfg)

	maxBytes, err := parseBodySize(cfg.Webhook.MaxBodySize)
	if err != nil {
		return nil, fmt.Errorf("webhook.max_body_size %q: %w", cfg.Webhook.MaxBodySize, err)
	}
	cfg.Webhook.MaxBodyBytes = maxBytes

	cfg.Webhook.DedupeTTLSeconds = clampInt(cfg.Webhook.DedupeTTLSeconds, MinDedupeTTLSeconds, MaxDedupeTTLSeconds)
	cfg.Forward.TimeoutMS = clampInt(cfg.Forward.TimeoutMS, MinForwardTimeoutMS, MaxForwardTimeoutMS)

	// Normalize accepted event types once, so the filter compares uppercase.
	for i, ev := range cfg.Webhook.AcceptedEvents {
		cfg.Webhook.AcceptedEvents[i] = strings.ToUpper(strings.TrimSpace(ev))
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}
	if cfg.Listen == "" {
		cfg.Listen = defaults.Listen
	}
	if cfg.Webhook.Path == "" {
		cfg.Webhook.Path = defaults.Webhook.Path
	}
	if cfg.Webhook.MaxBodySize == "" {
		cfg.Webhook.MaxBodySize = defaults.Webhook.MaxBodySize
	}
	if cfg.Webhook.DedupeTTLSeconds == 0 {
		cfg.Webhook.DedupeTTLSeconds = defaults.Webhook.DedupeTTLSeconds
	}
	if len(cfg.Webhook.AcceptedEvents) == 0 {
		cfg.Webhook.AcceptedEvents = defaults.Webhook.AcceptedEvents
	}
	if cfg.Forward.TimeoutMS == 0 {
		cfg.Forward.TimeoutMS = defaults.Forward.TimeoutMS
	}
	if cfg.Forward.WakeMode == "" {
		cfg.Forward.WakeMode = defaults.Forward.WakeMode
	}
}

func applyEnvFallbacks(cfg *Config) {
	if cfg.Webhook.Secret == "" {
		cfg.Webhook.Secret = os.Getenv(EnvWebhookSecret)
	}
	if cfg.Forward.URL == "" {
		cfg.Forward.URL = os.Getenv(EnvForwardURL)
	}
	if cfg.Forward.Token == "" {
		cfg.Forward.Token = os.Getenv(EnvForwardToken)
	}
	if cfg.Forward.Channel == "" {
		cfg.Forward.Channel = os.Getenv(EnvChannel)
	}
	if cfg.Forward.AgentID == "" {
		cfg.Forward.AgentID = os.Getenv(EnvAgentID)
	}
}

// validate performs basic validation on the resolved configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Service.LogFormat)] {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if !strings.HasPrefix(cfg.Webhook.Path, "/") {
		return fmt.Errorf("webhook.path must start with / (got %q)", cfg.Webhook.Path)
	}

	for i, ev := range cfg.Webhook.AcceptedEvents {
		if ev == "" {
			return fmt.Errorf("webhook.accepted_events[%d] is empty", i)
		}
	}

	// Unresolved ${VAR} in the secret means the operator referenced an env var
	// that is not set. Fail fast rather than comparing against the placeholder.
	if envVarPattern.MatchString(cfg.Webhook.Secret) {
		matches := envVarPattern.FindStringSubmatch(cfg.Webhook.Secret)
		return fmt.Errorf("webhook.secret: environment variable ${%s} is not set", matches[1])
	}
	if envVarPattern.MatchString(cfg.Forward.Token) {
		matches := envVarPattern.FindStringSubmatch(cfg.Forward.Token)
		return fmt.Errorf("forward.token: environment variable ${%s} is not set", matches[1])
	}

	if cfg.Forward.URL != "" {
		u, err := url.Parse(cfg.Forward.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("forward.url must be an absolute http(s) URL (got %q)", cfg.Forward.URL)
		}
	}

	return nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is so validation can report them by name.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// parseBodySize parses size strings like "512KB", "1MB", "524288" to bytes.
func parseBodySize(size string) (int64, error) {
	if size == "" {
		return DefaultMaxBodyBytes, nil
	}

	upper := strings.ToUpper(strings.TrimSpace(size))
	multiplier := int64(1)

	switch {
	case strings.HasSuffix(upper, "KB"):
		multiplier = 1024
		upper = strings.TrimSuffix(upper, "KB")
	case strings.HasSuffix(upper, "MB"):
		multiplier = 1024 * 1024
		upper = strings.TrimSuffix(upper, "MB")
	case strings.HasSuffix(upper, "GB"):
		multiplier = 1024 * 1024 * 1024
		upper = strings.TrimSuffix(upper, "GB")
	}

	value, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}

	result := value * multiplier
	if result < 0 {
		return 0, fmt.Errorf("size too large")
	}
	return result, nil
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
