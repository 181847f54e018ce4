package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vcfgather/server/internal/realtime"
)

const keepAliveInterval = 25 * time.Second

// LiveHandler streams session snapshots as server-sent events
type LiveHandler struct {
	clients *Clients
	log     *slog.Logger
}

// NewLiveHandler creates a new live handler
func NewLiveHandler(clients *Clients, log *slog.Logger) *LiveHandler {
	return &LiveHandler{clients: clients, log: log}
}

// sseWriter serializes writes from the projector and the keepalive ticker
type sseWriter struct {
	mu sync.Mutex
	w  http.ResponseWriter
	rc *http.ResponseController
}

func (s *sseWriter) send(event string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return s.rc.Flush()
}

func (s *sseWriter) comment() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprint(s.w, ": keepalive\n\n"); err != nil {
		return err
	}
	return s.rc.Flush()
}

// HandleLive handles GET /sessions/{id}/live. The stream ends when the client goes away.
func (h *LiveHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return
	}

	client := h.clients.For(w, r)
	// fail fast on unknown sessions before switching to an event stream
	if _, _, err := client.Load(r.Context(), id); err != nil {
		respondError(w, h.log, err)
		return
	}

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.log.Debug("write deadline not cleared", "error", err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	out := &sseWriter{w: w, rc: rc}
	if err := out.comment(); err != nil {
		h.log.Warn("streaming not supported", "error", err)
		return
	}

	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := out.comment(); err != nil {
					return
				}
			}
		}
	}()
	defer close(done)

	h.log.Info("live stream opened", "session_id", id)
	err = client.Watch(ctx, id, func(snap realtime.Snapshot) {
		data, err := json.Marshal(snap)
		if err != nil {
			h.log.Error("failed to encode snapshot", "error", err)
			return
		}
		if err := out.send("snapshot", data); err != nil {
			h.log.Debug("live write failed", "session_id", id, "error", err)
		}
	})
	if err != nil && ctx.Err() == nil {
		h.sendError(out, id, err)
		h.log.Warn("live stream ended", "session_id", id, "error", err)
		return
	}
	h.log.Info("live stream closed", "session_id", id)
}

// sendError tells the client why the stream is ending
func (h *LiveHandler) sendError(out *sseWriter, id uuid.UUID, cause error) {
	data, err := json.Marshal(errorResponse{Error: cause.Error()})
	if err != nil {
		h.log.Error("failed to encode live error", "session_id", id, "error", err)
		return
	}
	if err := out.send("error", data); err != nil {
		h.log.Debug("live write failed", "session_id", id, "error", err)
	}
}
