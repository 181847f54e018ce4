package handlers

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
)

// httpSink delivers a contact file as the response body
type httpSink struct {
	w http.ResponseWriter
}

func (s httpSink) Deliver(_ context.Context, filename string, content []byte) error {
	h := s.w.Header()
	h.Set("Content-Type", "text/vcard; charset=utf-8")
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	h.Set("Content-Length", strconv.Itoa(len(content)))
	h.Set("Cache-Control", "no-store")
	s.w.WriteHeader(http.StatusOK)
	_, err := s.w.Write(content)
	return err
}

// DownloadHandler serves the compiled contact file
type DownloadHandler struct {
	clients *Clients
	log     *slog.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(clients *Clients, log *slog.Logger) *DownloadHandler {
	return &DownloadHandler{clients: clients, log: log}
}

// HandleDownload handles GET /sessions/{id}/download. Every request compiles the
// file from the current participant set.
func (h *DownloadHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return
	}

	client := h.clients.For(w, r)
	s, _, err := client.Load(r.Context(), id)
	if err != nil {
		respondError(w, h.log, err)
		return
	}

	f, err := client.Download(r.Context(), s, httpSink{w: w})
	if err != nil {
		// the sink only writes once the file is complete
		respondError(w, h.log, err)
		return
	}
	h.log.Info("contact file served", "session_id", s.ID, "contacts", f.Count)
}
