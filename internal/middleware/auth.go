package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/vcfgather/server/internal/auth"
)

type contextKey string

const (
	callerIDKey contextKey = "caller_id"
	deviceIDKey contextKey = "device_id"
)

// IdentityMiddleware resolves the optional bearer token into a caller id.
// Requests without an Authorization header continue anonymously; a malformed or
// invalid token is rejected.
func IdentityMiddleware(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				respondWithError(w, http.StatusUnauthorized, "missing token")
				return
			}

			creatorID, err := jwtService.VerifyCreatorToken(tokenString)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), callerIDKey, creatorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireIdentity rejects anonymous requests
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetCallerID(r.Context()); !ok {
			respondWithError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetCallerID extracts the authenticated caller id from context
func GetCallerID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(callerIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// CallerID returns the caller id, or uuid.Nil for anonymous requests
func CallerID(ctx context.Context) uuid.UUID {
	id, _ := GetCallerID(ctx)
	return id
}

// GetDeviceID extracts the device id from context
func GetDeviceID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(deviceIDKey).(uuid.UUID)
	return id, ok
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]string{"error": message}
	_ = json.NewEncoder(w).Encode(response)
}
