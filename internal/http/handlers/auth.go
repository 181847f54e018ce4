package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/vcfgather/server/internal/auth"
	"github.com/vcfgather/server/internal/middleware"
	"github.com/vcfgather/server/internal/model"
)

// AuthHandler issues creator tokens and reports the caller's identity.
// Account management lives outside this service; tokens are only minted here in dev mode.
type AuthHandler struct {
	jwt *auth.JWTService
	log *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(jwtService *auth.JWTService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{jwt: jwtService, log: log}
}

// TokenRequest asks for a creator token. An empty CreatorID mints a new identity.
type TokenRequest struct {
	CreatorID string `json:"creator_id"`
}

// TokenResponse carries a creator bearer token
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	CreatorID   uuid.UUID `json:"creator_id"`
}

// HandleToken handles POST /auth/token
func (h *AuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, h.log, err)
			return
		}
	}

	creatorID := uuid.New()
	if req.CreatorID != "" {
		id, err := uuid.Parse(req.CreatorID)
		if err != nil || id == uuid.Nil {
			respondError(w, h.log, model.NewValidationError("creator_id", "creator_id must be a UUID"))
			return
		}
		creatorID = id
	}

	token, err := h.jwt.SignCreatorToken(creatorID)
	if err != nil {
		respondError(w, h.log, err)
		return
	}

	h.log.Info("creator token issued", "creator_id", creatorID)
	respondJSON(w, http.StatusOK, TokenResponse{AccessToken: token, CreatorID: creatorID})
}

// HandleMe handles GET /me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := middleware.GetCallerID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	deviceID, _ := middleware.GetDeviceID(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{
		"creator_id": creatorID,
		"device_id":  deviceID,
	})
}
