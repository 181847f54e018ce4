package tests

import (
	"context"
	"database/sql"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/vcfgather/server/internal/app"
	"github.com/vcfgather/server/internal/auth"
	"github.com/vcfgather/server/internal/config"
	httphandler "github.com/vcfgather/server/internal/http"
	"github.com/vcfgather/server/internal/http/handlers"
	"github.com/vcfgather/server/internal/logger"
)

const testSecret = "test-jwt-secret-at-least-32-characters-long"

// testServer holds the server and its backend for integration tests
type testServer struct {
	Server *httptest.Server
	App    *app.App
	JWT    *auth.JWTService
}

// newTestServer starts the full router over driver. Postgres requires DATABASE_URL.
func newTestServer(t *testing.T, driver string) *testServer {
	t.Helper()

	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("STORE_DRIVER", driver)
	t.Setenv("DEV_MODE", "true")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "1000")
	t.Setenv("REALTIME_MIN_RECONNECT", "10ms")
	t.Setenv("REALTIME_MAX_RECONNECT", "50ms")

	cfg, err := config.Load()
	require.NoError(t, err, "config load must succeed for integration test")

	log := logger.Discard()
	reg := prometheus.NewRegistry()
	a, err := app.New(context.Background(), cfg, log, app.Options{Registerer: reg})
	require.NoError(t, err, "backend must start; check DATABASE_URL and that test DB exists")
	t.Cleanup(func() { a.Close() })

	if a.DB != nil {
		require.NoError(t, TruncateTables(context.Background(), a.DB), "truncate tables")
	}

	jwtService := auth.NewJWTService(cfg.JWTSecret)
	var db handlers.Pinger
	if a.DB != nil {
		db = a.DB
	}
	router := httphandler.NewRouter(httphandler.Deps{
		Config:   cfg,
		Engine:   a.Engine,
		Sessions: a.Sessions,
		JWT:      jwtService,
		DB:       db,
		Metrics:  a.Metrics,
		Gatherer: reg,
		Logger:   log,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testServer{Server: server, App: a, JWT: jwtService}
}

// TruncateTables empties the session tables for a clean test state
func TruncateTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "TRUNCATE TABLE participants, sessions CASCADE")
	if err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}
