package handlers

import (
	"log/slog"
	"net/http"

	"github.com/vcfgather/server/internal/model"
	"github.com/vcfgather/server/internal/registry"
	"github.com/vcfgather/server/internal/session"
)

// ParticipantHandler handles the contact registry endpoints of a session
type ParticipantHandler struct {
	clients *Clients
	log     *slog.Logger
}

// NewParticipantHandler creates a new participant handler
func NewParticipantHandler(clients *Clients, log *slog.Logger) *ParticipantHandler {
	return &ParticipantHandler{clients: clients, log: log}
}

// ContactRequest is the body of submit and edit requests
type ContactRequest struct {
	Name     string `json:"name"`
	DialCode string `json:"dial_code"`
	Number   string `json:"number"`
}

func (c ContactRequest) input() registry.ContactInput {
	return registry.ContactInput{Name: c.Name, DialCode: c.DialCode, Number: c.Number}
}

// ImportResponse reports a bulk import
type ImportResponse struct {
	Imported int `json:"imported"`
}

// load resolves the {id} session and a client acting for the request
func (h *ParticipantHandler) load(w http.ResponseWriter, r *http.Request) (*session.Client, model.Session, bool) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return nil, model.Session{}, false
	}
	client := h.clients.For(w, r)
	s, _, err := client.Load(r.Context(), id)
	if err != nil {
		respondError(w, h.log, err)
		return nil, model.Session{}, false
	}
	return client, s, true
}

// HandleSubmit handles POST /sessions/{id}/participants
func (h *ParticipantHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}

	client, s, ok := h.load(w, r)
	if !ok {
		return
	}

	res, err := client.Submit(r.Context(), s, req.input())
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

// HandleList handles GET /sessions/{id}/participants, filtered by ?q=
func (h *ParticipantHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	client, s, ok := h.load(w, r)
	if !ok {
		return
	}

	list, err := client.Search(r.Context(), s, r.URL.Query().Get("q"))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	if list == nil {
		list = []model.Participant{}
	}
	respondJSON(w, http.StatusOK, list)
}

// HandleEdit handles PUT /sessions/{id}/participants/{pid}
func (h *ParticipantHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}

	client, s, ok := h.load(w, r)
	if !ok {
		return
	}
	pid, err := uuidParam(r, "pid")
	if err != nil {
		respondError(w, h.log, err)
		return
	}

	p, err := client.Edit(r.Context(), s, pid, req.input())
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// HandleDelete handles DELETE /sessions/{id}/participants/{pid}
func (h *ParticipantHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	client, s, ok := h.load(w, r)
	if !ok {
		return
	}
	pid, err := uuidParam(r, "pid")
	if err != nil {
		respondError(w, h.log, err)
		return
	}

	if err := client.Delete(r.Context(), s, pid); err != nil {
		respondError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleImport handles POST /sessions/{id}/participants/import with a text/plain body of "name,phone" lines
func (h *ParticipantHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	client, s, ok := h.load(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	n, err := client.Import(r.Context(), s, r.Body)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, ImportResponse{Imported: n})
}
