package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vcfgather/server/internal/auth"
	"github.com/vcfgather/server/internal/middleware"
	"github.com/vcfgather/server/internal/model"
	"github.com/vcfgather/server/internal/session"
)

const (
	submissionsCookiePrefix = "vcf_submissions_"
	submissionsCookieMaxAge = 60 * 24 * time.Hour
)

// cookieRecords keeps a device's submission record in a signed cookie, so the
// record lives in the browser like any other device-local state
type cookieRecords struct {
	w      http.ResponseWriter
	r      *http.Request
	jwt    *auth.JWTService
	secure bool
	log    *slog.Logger
}

func submissionsCookie(sessionID uuid.UUID) string {
	return submissionsCookiePrefix + sessionID.String()
}

// Load returns the record carried by the request; a missing or tampered cookie reads as empty
func (c *cookieRecords) Load(_ context.Context, deviceID, sessionID uuid.UUID) (model.DeviceRecord, error) {
	cookie, err := c.r.Cookie(submissionsCookie(sessionID))
	if err != nil {
		return nil, nil
	}
	rec, err := c.jwt.ParseDeviceRecord(cookie.Value, deviceID, sessionID)
	if err != nil {
		c.log.Debug("ignoring device record cookie", "session_id", sessionID, "error", err)
		return nil, nil
	}
	return rec, nil
}

// Save sets the signed record on the response
func (c *cookieRecords) Save(_ context.Context, deviceID, sessionID uuid.UUID, rec model.DeviceRecord) error {
	token, err := c.jwt.SignDeviceRecord(deviceID, sessionID, rec)
	if err != nil {
		return err
	}
	http.SetCookie(c.w, &http.Cookie{
		Name:     submissionsCookie(sessionID),
		Value:    token,
		Path:     "/",
		MaxAge:   int(submissionsCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clients builds the per-request session client
type Clients struct {
	engine *session.Engine
	jwt    *auth.JWTService
	secure bool
	log    *slog.Logger
}

// NewClients creates a Clients factory. secure marks cookies Secure.
func NewClients(engine *session.Engine, jwtService *auth.JWTService, secure bool, log *slog.Logger) *Clients {
	if log == nil {
		log = slog.Default()
	}
	return &Clients{engine: engine, jwt: jwtService, secure: secure, log: log}
}

// For returns a client acting as the request's caller and device
func (c *Clients) For(w http.ResponseWriter, r *http.Request) *session.Client {
	deviceID, _ := middleware.GetDeviceID(r.Context())
	return c.engine.For(session.Caller{
		ID:       middleware.CallerID(r.Context()),
		DeviceID: deviceID,
		Records:  &cookieRecords{w: w, r: r, jwt: c.jwt, secure: c.secure, log: c.log},
	})
}
