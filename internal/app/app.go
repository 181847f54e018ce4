// Package app wires the stores, realtime stream and engine for a configured driver.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vcfgather/server/internal/config"
	"github.com/vcfgather/server/internal/db"
	"github.com/vcfgather/server/internal/metrics"
	"github.com/vcfgather/server/internal/quota"
	"github.com/vcfgather/server/internal/realtime"
	"github.com/vcfgather/server/internal/repo"
	"github.com/vcfgather/server/internal/session"
)

// App is the composed backend
type App struct {
	Config   *config.Config
	DB       *sql.DB
	Hub      *realtime.Hub
	Engine   *session.Engine
	Sessions *session.Service
	Metrics  metrics.Recorder
	Logger   *slog.Logger
}

// Options customizes New. Zero values select the defaults.
type Options struct {
	Registerer prometheus.Registerer
	Records    quota.Store
}

// New opens the configured store and composes the engine over it
func New(ctx context.Context, cfg *config.Config, log *slog.Logger, opts Options) (*App, error) {
	var rec metrics.Recorder = metrics.Nop{}
	if opts.Registerer != nil {
		rec = metrics.NewCollector(opts.Registerer)
	}

	a := &App{Config: cfg, Metrics: rec, Logger: log}

	var (
		sessions     repo.SessionRepo
		participants repo.ParticipantRepo
		stream       realtime.Stream
	)

	switch cfg.StoreDriver {
	case config.DriverMemory:
		a.Hub = realtime.NewHub(0)
		store := repo.NewMemoryStore(a.Hub, nil)
		sessions, participants, stream = store, store, a.Hub
		log.Info("using in-memory store")

	case config.DriverPostgres:
		database, err := db.Open(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.Migrate(database); err != nil {
			database.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		a.DB = database
		sessions = repo.NewSessionRepo(database)
		participants = repo.NewParticipantRepo(database)
		stream = realtime.NewPGStream(cfg.DatabaseURL, cfg.RealtimeMinReconnect, cfg.RealtimeMaxReconnect, log)

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	a.Engine = session.NewEngine(session.Deps{
		Sessions:     sessions,
		Participants: participants,
		Stream:       stream,
		Records:      opts.Records,
		MinReconnect: cfg.RealtimeMinReconnect,
		MaxReconnect: cfg.RealtimeMaxReconnect,
		Logger:       log,
		Metrics:      rec,
	})
	a.Sessions = session.NewService(sessions, nil, log)
	return a, nil
}

// Close releases the database connection, if any
func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
