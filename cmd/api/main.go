package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vcfgather/server/internal/app"
	"github.com/vcfgather/server/internal/auth"
	"github.com/vcfgather/server/internal/config"
	httphandler "github.com/vcfgather/server/internal/http"
	"github.com/vcfgather/server/internal/http/handlers"
	"github.com/vcfgather/server/internal/logger"
)

func main() {
	// Load .env from CWD (env vars override)
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.SetupDefault(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := app.New(ctx, cfg, log, app.Options{Registerer: reg})
	if err != nil {
		log.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	router := httphandler.NewRouter(httphandler.Deps{
		Config:   cfg,
		Engine:   a.Engine,
		Sessions: a.Sessions,
		JWT:      auth.NewJWTService(cfg.JWTSecret),
		DB:       pinger(a),
		Metrics:  a.Metrics,
		Gatherer: reg,
		Logger:   log,
	})

	// WriteTimeout is cleared per request by the live stream
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "driver", cfg.StoreDriver, "dev_mode", cfg.DevMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	log.Info("server exited")
}

func pinger(a *app.App) handlers.Pinger {
	if a.DB == nil {
		return nil
	}
	return a.DB
}
