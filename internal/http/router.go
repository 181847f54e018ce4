package http

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vcfgather/server/internal/auth"
	"github.com/vcfgather/server/internal/config"
	"github.com/vcfgather/server/internal/http/handlers"
	"github.com/vcfgather/server/internal/metrics"
	"github.com/vcfgather/server/internal/middleware"
	"github.com/vcfgather/server/internal/session"
)

// Deps are the components the router serves
type Deps struct {
	Config   *config.Config
	Engine   *session.Engine
	Sessions *session.Service
	JWT      *auth.JWTService
	DB       handlers.Pinger
	Metrics  metrics.Recorder
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(d Deps) *chi.Mux {
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	secure := !d.Config.DevMode

	clients := handlers.NewClients(d.Engine, d.JWT, secure, d.Logger)
	sessionHandler := handlers.NewSessionHandler(d.Sessions, clients, d.Config, d.Logger)
	participantHandler := handlers.NewParticipantHandler(clients, d.Logger)
	downloadHandler := handlers.NewDownloadHandler(clients, d.Logger)
	liveHandler := handlers.NewLiveHandler(clients, d.Logger)
	authHandler := handlers.NewAuthHandler(d.JWT, d.Logger)

	submitLimiter := middleware.NewRateLimiter(time.Minute, d.Config.RateLimitPerMinute)
	tokenLimiter := middleware.NewRateLimiter(time.Minute, 10)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware(d.Metrics))

	r.Get("/health", handlers.NewHealthHandler(d.DB).ServeHTTP)
	if d.Gatherer != nil {
		r.Method("GET", "/metrics", metrics.Handler(d.Gatherer))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.IdentityMiddleware(d.JWT))
		r.Use(middleware.DeviceMiddleware(secure))

		if d.Config.DevMode {
			r.With(middleware.RateLimitMiddleware(tokenLimiter, middleware.GetIPKey)).
				Post("/auth/token", authHandler.HandleToken)
		}
		r.With(middleware.RequireIdentity).Get("/me", authHandler.HandleMe)

		submit := middleware.RateLimitMiddleware(submitLimiter, middleware.GetDeviceKey)

		// public share links
		r.Get("/join/{id}", sessionHandler.HandleGet)
		r.With(submit).Post("/join/{id}", participantHandler.HandleSubmit)
		r.Get("/download/{id}", downloadHandler.HandleDownload)

		r.Route("/sessions", func(r chi.Router) {
			r.With(middleware.RequireIdentity).Post("/", sessionHandler.HandleCreate)
			r.With(middleware.RequireIdentity).Get("/", sessionHandler.HandleDashboard)
			r.Get("/durations", sessionHandler.HandleDurations)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessionHandler.HandleGet)
				r.Get("/live", liveHandler.HandleLive)
				r.Get("/download", downloadHandler.HandleDownload)

				r.Route("/participants", func(r chi.Router) {
					r.Get("/", participantHandler.HandleList)
					r.With(submit).Post("/", participantHandler.HandleSubmit)
					r.With(middleware.RequireIdentity).Post("/import", participantHandler.HandleImport)
					r.Put("/{pid}", participantHandler.HandleEdit)
					r.Delete("/{pid}", participantHandler.HandleDelete)
				})
			})
		})
	})

	return r
}
