package db

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/lib/pq"
)

// invalid_catalog_name
const codeUndefinedDatabase = "3D000"

func isUndefinedDatabase(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeUndefinedDatabase
}

// Open establishes a connection to PostgreSQL and configures the connection pool.
func Open(ctx context.Context, databaseURL string, log *slog.Logger) (*sql.DB, error) {
	if log == nil {
		log = slog.Default()
	}

	databaseURL = strings.TrimSpace(databaseURL)
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	u, err := url.Parse(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}

	dbName := strings.TrimPrefix(u.Path, "/")
	host := cmp.Or(u.Hostname(), "localhost")
	port := cmp.Or(u.Port(), "5432")
	log.Info("database connect target", "host", host, "port", port, "db", dbName, "dsn", u.Redacted())

	if dbName != "" {
		precheck(ctx, u, dbName, log)
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(connectCtx); err != nil {
		_ = db.Close()

		if isUndefinedDatabase(err) {
			return nil, fmt.Errorf("database %q not found on %s:%s: %w", dbName, host, port, err)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// precheck looks the database up through the maintenance database "postgres"
// so a missing database is reported clearly. Failures are only logged.
func precheck(ctx context.Context, u *url.URL, dbName string, log *slog.Logger) {
	maintenanceURL := *u
	maintenanceURL.Path = "/postgres"
	maintenanceURL.RawPath = ""

	maintDB, err := sql.Open("postgres", maintenanceURL.String())
	if err != nil {
		log.Warn("database precheck: could not open maintenance connection", "error", err)
		return
	}
	defer maintDB.Close()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var found string
	err = maintDB.QueryRowContext(checkCtx, "SELECT datname FROM pg_database WHERE datname = $1", dbName).Scan(&found)
	switch {
	case err == nil:
		log.Debug("database precheck: database exists", "db", found)
	case errors.Is(err, sql.ErrNoRows):
		log.Warn("database precheck: database not found on this instance", "db", dbName)
	default:
		log.Warn("database precheck: could not query pg_database", "error", err)
	}
}
