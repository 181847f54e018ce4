package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DeviceCookie names the cookie holding the browser's device id
const DeviceCookie = "vcf_device"

const deviceCookieMaxAge = 365 * 24 * time.Hour

// DeviceMiddleware makes sure every request carries a device id, issuing a
// cookie on first contact. The id only scopes submission records.
func DeviceMiddleware(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deviceID := uuid.Nil
			if c, err := r.Cookie(DeviceCookie); err == nil {
				if id, err := uuid.Parse(c.Value); err == nil {
					deviceID = id
				}
			}

			if deviceID == uuid.Nil {
				deviceID = uuid.New()
				http.SetCookie(w, &http.Cookie{
					Name:     DeviceCookie,
					Value:    deviceID.String(),
					Path:     "/",
					MaxAge:   int(deviceCookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), deviceIDKey, deviceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
