// Package forward delivers synthesized instructions to the downstream agent
// hook endpoint. Delivery is single-shot: failures are reported to the
// caller for logging, never retried, and never reach the inbound webhook
// response (the ack has already been sent by the time Send runs).
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jzakirov/openclaw-smartlead/internal/config"
)

// ErrNotConfigured is returned when the forward URL or token is unset.
// Fail at the point of use with a descriptive message; never default.
var ErrNotConfigured = errors.New("forward url or token not configured")

const maxErrorBodyBytes = 2048

// hookRequest is the agent hook wire format.
type hookRequest struct {
	Message        string `json:"message"`
	Name           string `json:"name"`
	SessionKey     string `json:"sessionKey,omitempty"`
	WakeMode       string `json:"wakeMode"`
	Deliver        bool   `json:"deliver"`
	AgentID        string `json:"agentId,omitempty"`
	Channel        string `json:"channel,omitempty"`
	To             string `json:"to,omitempty"`
	Model          string `json:"model,omitempty"`
	Thinking       string `json:"thinking,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"`
}

// Forwarder posts rendered prompts to the configured hook endpoint.
type Forwarder struct {
	cfg    config.ForwardConfig
	name   string
	client *http.Client
	logger *slog.Logger
}

// New creates a forwarder. name identifies this bridge in the hook body.
func New(cfg config.ForwardConfig, name string, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		cfg:  cfg,
		name: name,
		client: &http.Client{
			Timeout: cfg.Timeout(),
		},
		logger: logger,
	}
}

// Timeout returns the configured per-call deadline.
func (f *Forwarder) Timeout() time.Duration {
	return f.cfg.Timeout()
}

// Send performs one authenticated POST carrying the rendered message.
// The call is bounded by the configured timeout on top of whatever deadline
// ctx carries; cancellation closes the in-flight connection.
func (f *Forwarder) Send(ctx context.Context, message string) error {
	if !f.cfg.Configured() {
		return ErrNotConfigured
	}

	body := hookRequest{
		Message:  message,
		Name:     f.name,
		WakeMode: f.cfg.WakeMode,
		Deliver:  true,
		AgentID:  f.cfg.AgentID,
		Channel:  f.cfg.Channel,
		To:       f.cfg.To,
		Model:    f.cfg.Model,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal hook request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build hook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.cfg.Token)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("post hook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Carry status and response body so the log line is actionable.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("hook endpoint returned %d: %s", resp.StatusCode, snippet)
	}

	f.logger.Debug("hook delivered", "status", resp.StatusCode, "bytes", len(payload))
	return nil
}
