// Command migrate creates or drops the storage schema.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"datastream-pipeline/internal/config"
	"datastream-pipeline/pkg/database"
	"datastream-pipeline/pkg/logging"
	"datastream-pipeline/pkg/metrics"
)

var version = "dev"

var migrationsUp = []string{
	`CREATE TABLE IF NOT EXISTS datastreams (
		id         TEXT PRIMARY KEY,
		location   TEXT NOT NULL,
		name       TEXT NOT NULL,
		level      TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS datasets (
		id            UUID PRIMARY KEY,
		datastream_id TEXT NOT NULL REFERENCES datastreams(id),
		begin_time    TIMESTAMPTZ NOT NULL,
		end_time      TIMESTAMPTZ NOT NULL,
		attrs         JSONB,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (datastream_id, begin_time)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_datasets_interval
		ON datasets (datastream_id, begin_time, end_time)`,
	`CREATE TABLE IF NOT EXISTS dataset_variables (
		id           BIGSERIAL PRIMARY KEY,
		dataset_id   UUID NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
		name         TEXT NOT NULL,
		dims         JSONB,
		attrs        JSONB,
		is_coord     BOOLEAN NOT NULL DEFAULT FALSE,
		float_values JSONB,
		int_values   JSONB,
		raw_values   JSONB,
		position     INTEGER NOT NULL DEFAULT 0,
		UNIQUE (dataset_id, name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_dataset_variables_dataset
		ON dataset_variables (dataset_id, position)`,
}

var migrationsDown = []string{
	`DROP TABLE IF EXISTS dataset_variables`,
	`DROP TABLE IF EXISTS datasets`,
	`DROP TABLE IF EXISTS datastreams`,
}

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	var statements []string
	switch *direction {
	case "up":
		statements = migrationsUp
	case "down":
		statements = migrationsDown
	default:
		fmt.Fprintln(os.Stderr, "usage: migrate [-direction up|down]")
		os.Exit(2)
	}

	appCfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("migrate", version, logging.ParseLevel(appCfg.Logging.Level))
	collector := metrics.NewCollector("datastream_pipeline")
	ctx := context.Background()

	db, err := database.NewPostgresDB(&database.Config{
		Host:            appCfg.Database.Host,
		Port:            appCfg.Database.Port,
		User:            appCfg.Database.User,
		Password:        appCfg.Database.Password,
		Database:        appCfg.Database.Database,
		SSLMode:         appCfg.Database.SSLMode,
		MaxOpenConns:    appCfg.Database.MaxOpenConns,
		MaxIdleConns:    appCfg.Database.MaxIdleConns,
		ConnMaxLifetime: appCfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: appCfg.Database.ConnMaxIdleTime,
	}, logger, collector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP] Failed to connect to database", nil, err)
	}
	defer db.Close()

	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, "migration", stmt); err != nil {
			logger.Fatal(ctx, "[MIGRATE] Statement failed", logging.Fields{
				"direction": *direction,
				"statement": i,
			}, err)
		}
	}

	logger.Info(ctx, "[MIGRATE] Schema migration complete", logging.Fields{
		"direction":  *direction,
		"statements": len(statements),
	})
}
