package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
		checkFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "minimal config gets defaults",
			yaml: `
listen: "127.0.0.1:9999"
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Listen != "127.0.0.1:9999" {
					t.Errorf("listen = %q", cfg.Listen)
				}
				if cfg.Webhook.Path != "/smartlead/webhook" {
					t.Errorf("webhook.path = %q, want default", cfg.Webhook.Path)
				}
				if cfg.Webhook.DedupeTTLSeconds != 900 {
					t.Errorf("dedupe_ttl_seconds = %d, want 900", cfg.Webhook.DedupeTTLSeconds)
				}
				if cfg.Webhook.MaxBodyBytes != 512*1024 {
					t.Errorf("max body bytes = %d, want 512 KiB", cfg.Webhook.MaxBodyBytes)
				}
				if cfg.Forward.TimeoutMS != 15000 {
					t.Errorf("timeout_ms = %d, want 15000", cfg.Forward.TimeoutMS)
				}
				if len(cfg.Webhook.AcceptedEvents) != 1 || cfg.Webhook.AcceptedEvents[0] != "EMAIL_REPLY" {
					t.Errorf("accepted_events = %v, want [EMAIL_REPLY]", cfg.Webhook.AcceptedEvents)
				}
				if cfg.SourceHash == "" {
					t.Error("source hash not computed")
				}
			},
		},
		{
			name: "ttl and timeout clamped",
			yaml: `
webhook:
  dedupe_ttl_seconds: 9999999
forward:
  timeout_ms: 5
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Webhook.DedupeTTLSeconds != MaxDedupeTTLSeconds {
					t.Errorf("ttl = %d, want clamped to %d", cfg.Webhook.DedupeTTLSeconds, MaxDedupeTTLSeconds)
				}
				if cfg.Forward.TimeoutMS != MinForwardTimeoutMS {
					t.Errorf("timeout = %d, want clamped to %d", cfg.Forward.TimeoutMS, MinForwardTimeoutMS)
				}
			},
		},
		{
			name: "env interpolation resolves secret",
			yaml: `
webhook:
  secret: ${TEST_BRIDGE_SECRET}
`,
			env: map[string]string{"TEST_BRIDGE_SECRET": "hunter2"},
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Webhook.Secret != "hunter2" {
					t.Errorf("secret = %q, want hunter2", cfg.Webhook.Secret)
				}
			},
		},
		{
			name: "unresolved secret env var fails fast",
			yaml: `
webhook:
  secret: ${TEST_BRIDGE_SECRET_MISSING}
`,
			wantErr: "TEST_BRIDGE_SECRET_MISSING",
		},
		{
			name: "accepted events normalized to uppercase",
			yaml: `
webhook:
  accepted_events: [email_reply, Lead_Unsubscribed]
`,
			checkFn: func(t *testing.T, cfg *Config) {
				want := []string{"EMAIL_REPLY", "LEAD_UNSUBSCRIBED"}
				for i, ev := range cfg.Webhook.AcceptedEvents {
					if ev != want[i] {
						t.Errorf("accepted_events[%d] = %q, want %q", i, ev, want[i])
					}
				}
			},
		},
		{
			name: "invalid log level rejected",
			yaml: `
service:
  log_level: verbose
`,
			wantErr: "log_level",
		},
		{
			name: "relative webhook path rejected",
			yaml: `
webhook:
  path: smartlead/webhook
`,
			wantErr: "must start with /",
		},
		{
			name: "bad forward url rejected",
			yaml: `
forward:
  url: "not a url"
`,
			wantErr: "forward.url",
		},
		{
			name: "max body size with MB suffix",
			yaml: `
webhook:
  max_body_size: 2MB
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Webhook.MaxBodyBytes != 2*1024*1024 {
					t.Errorf("max body bytes = %d, want 2 MiB", cfg.Webhook.MaxBodyBytes)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load(writeConfig(t, tt.yaml))
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want substring %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if tt.checkFn != nil {
				tt.checkFn(t, cfg)
			}
		})
	}
}

func TestLoadOrDefaultWithoutFile(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv(EnvForwardURL, "https://claw.example.com/api/hooks/agent")
	t.Setenv(EnvForwardToken, "tok-123")

	// Run from an empty directory so ./config.yaml discovery cannot hit.
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if cfg.Forward.URL != "https://claw.example.com/api/hooks/agent" {
		t.Errorf("forward.url = %q, want env fallback", cfg.Forward.URL)
	}
	if cfg.Forward.Token != "tok-123" {
		t.Errorf("forward.token = %q, want env fallback", cfg.Forward.Token)
	}
	if !cfg.Forward.Configured() {
		t.Error("forward should be configured from env")
	}
}

func TestParseBodySize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", DefaultMaxBodyBytes, false},
		{"512KB", 512 * 1024, false},
		{"1MB", 1024 * 1024, false},
		{"1GB", 1024 * 1024 * 1024, false},
		{"524288", 524288, false},
		{"0", 0, true},
		{"-1KB", 0, true},
		{"huge", 0, true},
	}

	for _, tt := range tests {
		got, err := parseBodySize(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseBodySize(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("parseBodySize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
