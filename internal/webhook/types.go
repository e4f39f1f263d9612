package webhook

import (
	"context"

	"github.com/jzakirov/openclaw-smartlead/internal/capture"
)

// HookSender delivers a rendered instruction downstream. The forwarder
// bounds its own call with the configured timeout.
type HookSender interface {
	Send(ctx context.Context, message string) error
}

// EventRecorder persists handled events for inspection. Optional; the
// server runs without one.
type EventRecorder interface {
	Insert(ctx context.Context, rec capture.Record) (string, error)
	SetOutcome(ctx context.Context, id, outcome, detail string) error
}

// AckResponse is the JSON body for accepted, duplicate, and ignored events.
// Optional fields mirror what the extractor found; absent stays absent.
type AckResponse struct {
	OK         bool   `json:"ok"`
	EventType  string `json:"event_type,omitempty"`
	CampaignID *int64 `json:"campaign_id,omitempty"`
	LeadID     *int64 `json:"lead_id,omitempty"`
	LeadEmail  string `json:"lead_email,omitempty"`
	Duplicate  bool   `json:"duplicate,omitempty"`
	Ignored    bool   `json:"ignored,omitempty"`
}

// HealthResponse is the static descriptor served on GET.
type HealthResponse struct {
	OK                bool     `json:"ok"`
	Plugin            string   `json:"plugin"`
	WebhookPath       string   `json:"webhookPath"`
	AcceptedEvents    []string `json:"accepted_events"`
	ForwardConfigured bool     `json:"forward_configured"`
	UptimeSeconds     int64    `json:"uptime_seconds"`
}

// ErrorResponse carries a machine-readable code and a human message.
type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Machine-readable error codes.
const (
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeBodyTooLarge     = "body_too_large"
	ErrCodeMalformedJSON    = "malformed_json"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeBodyRead         = "body_read_failed"
)

// Capture outcomes.
const (
	OutcomeAccepted      = "accepted"
	OutcomeIgnored       = "ignored"
	OutcomeDuplicate     = "duplicate"
	OutcomeForwarded     = "forwarded"
	OutcomeForwardFailed = "forward_failed"
)
