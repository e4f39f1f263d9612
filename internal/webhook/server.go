package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jzakirov/openclaw-smartlead/internal/capture"
	"github.com/jzakirov/openclaw-smartlead/internal/config"
	"github.com/jzakirov/openclaw-smartlead/internal/dedup"
	"github.com/jzakirov/openclaw-smartlead/internal/events"
	"github.com/jzakirov/openclaw-smartlead/internal/extract"
	"github.com/jzakirov/openclaw-smartlead/internal/prompt"
)

// Server is the webhook HTTP server.
type Server struct {
	cfg      *config.Config
	cache    *dedup.Cache
	fwd      HookSender
	hub      *events.Hub
	recorder EventRecorder // nil when capture is disabled
	logger   *slog.Logger
	server   *http.Server

	startedAt time.Time

	// forwards tracks detached forward goroutines so shutdown (and tests)
	// can wait for them. Their outcome never reaches a response.
	forwards sync.WaitGroup
}

// New creates a webhook server. recorder may be nil.
func New(cfg *config.Config, cache *dedup.Cache, fwd HookSender, hub *events.Hub, recorder EventRecorder, logger *slog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		cache:     cache,
		fwd:       fwd,
		hub:       hub,
		recorder:  recorder,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start runs the HTTP server until ctx is cancelled (blocking).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:    s.cfg.Listen,
		Handler: router,
		// Hard wall against slow clients dribbling a body forever.
		ReadTimeout: 30 * time.Second,
		// No write timeout: the SSE tail holds its connection open.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("webhook server starting",
		"listen", s.cfg.Listen,
		"path", s.cfg.Webhook.Path,
		"secret_configured", s.cfg.Webhook.Secret != "",
		"forward_configured", s.cfg.Forward.Configured(),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		s.forwards.Wait()
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	path := s.cfg.Webhook.Path
	r.Get(path, s.handleHealth)
	r.Post(path, s.handleWebhook)
	r.Get(path+"/events", s.handleEvents)

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "only GET and POST are supported")
	})

	return r
}

// loggingMiddleware logs HTTP requests (never body content).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// handleHealth serves the static GET descriptor.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, HealthResponse{
		OK:                true,
		Plugin:            s.cfg.Service.Name,
		WebhookPath:       s.cfg.Webhook.Path,
		AcceptedEvents:    s.cfg.Webhook.AcceptedEvents,
		ForwardConfigured: s.cfg.Forward.Configured(),
		UptimeSeconds:     int64(time.Since(s.startedAt).Seconds()),
	})
}

// handleWebhook runs the inbound state machine: body read, extract,
// validate, filter, dedupe, ack. The forward leg is detached after the ack
// and can never change the response.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.cfg.Webhook.MaxBodyBytes

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, ErrCodeBodyRead, "failed to read request body")
		return
	}
	if int64(len(body)) > maxBytes {
		s.respondError(w, http.StatusBadRequest, ErrCodeBodyTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", maxBytes))
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		s.respondError(w, http.StatusBadRequest, ErrCodeMalformedJSON, "request body is not a JSON object")
		return
	}

	ectx := extract.Extract(payload)

	if !validSecret(tokenFromRequest(r, ectx.SecretKey), s.cfg.Webhook.Secret) {
		// Generic by design: no hint about why the secret mismatched.
		s.respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "unauthorized")
		return
	}

	if s.cfg.Webhook.LogPayloads {
		s.logger.Debug("webhook payload", "body", string(body))
	}

	if !s.eventAccepted(ectx) {
		s.publish(events.KindIgnored, ectx, "")
		s.record(ectx, OutcomeIgnored, body, "")
		s.respondJSON(w, http.StatusAccepted, AckResponse{OK: true, Ignored: true, EventType: ectx.EventType})
		return
	}

	now := time.Now()
	fp := dedup.Fingerprint(ectx)
	s.cache.Prune(now)
	if s.cache.Seen(fp, now) {
		s.logger.Info("duplicate event suppressed", "fingerprint", fp, "event_type", ectx.EventType)
		s.publish(events.KindDuplicate, ectx, "")
		s.record(ectx, OutcomeDuplicate, body, "")
		s.respondJSON(w, http.StatusOK, AckResponse{OK: true, Duplicate: true})
		return
	}
	s.cache.Record(fp, now)

	// Ack before the downstream leg starts; Smartlead must never be told to
	// retry because the forward failed.
	s.respondJSON(w, http.StatusAccepted, AckResponse{
		OK:         true,
		EventType:  ectx.EventType,
		CampaignID: ectx.CampaignID,
		LeadID:     ectx.LeadID,
		LeadEmail:  ectx.LeadEmail,
	})

	s.publish(events.KindReceived, ectx, "")
	captureID := s.record(ectx, OutcomeAccepted, body, "")
	s.detachForward(ectx, fp, captureID)
}

// eventAccepted applies the accepted-set filter, with the reply-like
// heuristic for payloads that carry no event-type field at all.
func (s *Server) eventAccepted(c *extract.Context) bool {
	if c.EventType == "" {
		return c.ReplyLike()
	}
	for _, ev := range s.cfg.Webhook.AcceptedEvents {
		if c.EventType == ev {
			return true
		}
	}
	return false
}

// detachForward starts the fire-and-forget downstream call. The caller has
// already flushed the response; the only contract here is to log the
// outcome.
func (s *Server) detachForward(ectx *extract.Context, fp, captureID string) {
	s.forwards.Add(1)
	go func() {
		defer s.forwards.Done()

		msg := prompt.Build(ectx, s.cfg.Forward.Channel)
		err := s.fwd.Send(context.Background(), msg)
		if err != nil {
			s.logger.Error("forward failed", "fingerprint", fp, "error", err)
			s.publish(events.KindForwardFailed, ectx, err.Error())
			s.setOutcome(captureID, OutcomeForwardFailed, err.Error())
			return
		}

		s.logger.Info("forwarded to agent hook", "fingerprint", fp, "event_type", ectx.EventType)
		s.publish(events.KindForwarded, ectx, "")
		s.setOutcome(captureID, OutcomeForwarded, "")
	}()
}

// eventSummary is what the hub carries per event.
type eventSummary struct {
	EventType  string `json:"event_type,omitempty"`
	CampaignID *int64 `json:"campaign_id,omitempty"`
	LeadID     *int64 `json:"lead_id,omitempty"`
	LeadEmail  string `json:"lead_email,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

func (s *Server) publish(kind string, c *extract.Context, detail string) {
	s.hub.Publish(kind, eventSummary{
		EventType:  c.EventType,
		CampaignID: c.CampaignID,
		LeadID:     c.LeadID,
		LeadEmail:  c.LeadEmail,
		Detail:     detail,
	})
}

func (s *Server) record(c *extract.Context, outcome string, body []byte, detail string) string {
	if s.recorder == nil {
		return ""
	}

	rec := capture.Record{
		Fingerprint: dedup.Fingerprint(c),
		EventType:   c.EventType,
		Outcome:     outcome,
		CampaignID:  c.CampaignID,
		LeadID:      c.LeadID,
		LeadEmail:   c.LeadEmail,
		Detail:      detail,
	}
	if s.cfg.Webhook.LogPayloads {
		rec.Payload = body
	}

	id, err := s.recorder.Insert(context.Background(), rec)
	if err != nil {
		s.logger.Warn("capture insert failed", "error", err)
		return ""
	}
	return id
}

func (s *Server) setOutcome(captureID, outcome, detail string) {
	if s.recorder == nil || captureID == "" {
		return
	}
	if err := s.recorder.SetOutcome(context.Background(), captureID, outcome, detail); err != nil {
		s.logger.Warn("capture update failed", "error", err)
	}
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, ErrorResponse{OK: false, Error: code, Message: message})
}
