package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/vcfgather/server/internal/access"
	"github.com/vcfgather/server/internal/artifact"
	"github.com/vcfgather/server/internal/middleware"
	"github.com/vcfgather/server/internal/model"
	"github.com/vcfgather/server/internal/session"
)

// Links builds the public URLs of a session
type Links interface {
	JoinURL(sessionID string) string
	DownloadURL(sessionID string) string
}

// SessionHandler handles session endpoints
type SessionHandler struct {
	service *session.Service
	clients *Clients
	links   Links
	log     *slog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(service *session.Service, clients *Clients, links Links, log *slog.Logger) *SessionHandler {
	return &SessionHandler{service: service, clients: clients, links: links, log: log}
}

type permissions struct {
	CanAdd      bool `json:"can_add"`
	CanViewList bool `json:"can_view_list"`
	CanEdit     bool `json:"can_edit"`
	CanDelete   bool `json:"can_delete"`
	CanImport   bool `json:"can_import"`
	CanDownload bool `json:"can_download"`
}

// sessionResponse is a session as seen by the requesting caller
type sessionResponse struct {
	Session              model.Session `json:"session"`
	View                 access.View   `json:"view"`
	Permissions          permissions   `json:"permissions"`
	ExpiresAt            time.Time     `json:"expires_at"`
	JoinURL              string        `json:"join_url"`
	DownloadURL          string        `json:"download_url"`
	RemainingSubmissions int           `json:"remaining_submissions"`
	DownloadReadyIn      int           `json:"download_ready_in,omitempty"`

	// Participants is only present when the view may see the list
	Participants []model.Participant `json:"participants,omitempty"`
}

func (h *SessionHandler) present(s model.Session, view access.View, remaining int) sessionResponse {
	resp := sessionResponse{
		Session: s,
		View:    view,
		Permissions: permissions{
			CanAdd:      view.CanAdd(),
			CanViewList: view.CanViewList(),
			CanEdit:     view.CanEdit(),
			CanDelete:   view.CanDelete(),
			CanImport:   view.CanImport(),
			CanDownload: view.CanDownload(),
		},
		ExpiresAt:            s.ExpiresAt(),
		JoinURL:              h.links.JoinURL(s.ID.String()),
		DownloadURL:          h.links.DownloadURL(s.ID.String()),
		RemainingSubmissions: remaining,
	}
	if view.CanDownload() {
		resp.DownloadReadyIn = int(artifact.ReadinessDelay.Seconds())
	}
	return resp
}

// HandleCreate handles POST /sessions
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in session.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, h.log, err)
		return
	}

	creatorID := middleware.CallerID(r.Context())
	s, err := h.service.Create(r.Context(), creatorID, in)
	if err != nil {
		respondError(w, h.log, err)
		return
	}

	view := access.Evaluate(s, creatorID, time.Now())
	respondJSON(w, http.StatusCreated, h.present(s, view, -1))
}

// HandleDashboard handles GET /sessions
func (h *SessionHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Dashboard(r.Context(), middleware.CallerID(r.Context()))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// HandleGet handles GET /sessions/{id} and GET /join/{id}
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return
	}

	client := h.clients.For(w, r)
	s, view, err := client.Load(r.Context(), id)
	if err != nil {
		respondError(w, h.log, err)
		return
	}

	remaining, err := client.Remaining(r.Context(), s)
	if err != nil {
		respondError(w, h.log, err)
		return
	}

	resp := h.present(s, view, remaining)
	if view.CanViewList() {
		list, err := client.List(r.Context(), s)
		if err != nil {
			respondError(w, h.log, err)
			return
		}
		resp.Participants = list
	}
	respondJSON(w, http.StatusOK, resp)
}

// HandleDurations handles GET /sessions/durations
func (h *SessionHandler) HandleDurations(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"default": session.DefaultDurationMinutes,
		"options": session.DurationOptions,
	})
}
