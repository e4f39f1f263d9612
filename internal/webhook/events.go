package webhook

import (
	"fmt"
	"net/http"
	"strconv"
)

// handleEvents streams hub events as server-sent events, for the watch TUI
// and curl. Guarded by the webhook secret when one is configured.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !validSecret(tokenFromRequest(r, ""), s.cfg.Webhook.Secret) {
		s.respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "unauthorized")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var lastID int64
	if v := r.URL.Query().Get("last_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			lastID = id
		}
	}

	// Replay the ring buffer for late clients, then follow live.
	for _, ev := range s.hub.Recent(lastID) {
		writeSSE(w, ev.ID, ev.Kind, ev.Data)
		lastID = ev.ID
	}
	flusher.Flush()

	ch, cancel := s.hub.Subscribe()
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.ID <= lastID {
				continue
			}
			writeSSE(w, ev.ID, ev.Kind, ev.Data)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, id int64, kind string, data []byte) {
	fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, kind, data)
}
