// Command server exposes the read-only query API over stored datastreams,
// plus Prometheus metrics and health checks.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"datastream-pipeline/internal/config"
	"datastream-pipeline/internal/handlers"
	"datastream-pipeline/internal/repository"
	"datastream-pipeline/internal/services"
	"datastream-pipeline/pkg/database"
	"datastream-pipeline/pkg/logging"
	"datastream-pipeline/pkg/metrics"
)

var version = "dev"

func main() {
	appCfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("server", version, logging.ParseLevel(appCfg.Logging.Level))
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

	repo := repository.NewDatastreamRepository(db, logger)
	svc := services.NewDatastreamService(repo, logger, config.DefaultFillValue)

	router := mux.NewRouter()
	handlers.NewDatastreamHandlers(svc, logger, collector).Register(router)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	addr := fmt.Sprintf("%s:%d", appCfg.Server.Host, appCfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  appCfg.Server.ReadTimeout,
		WriteTimeout: appCfg.Server.WriteTimeout,
		IdleTimeout:  appCfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[STARTUP] Query API listening", logging.Fields{
			"addr": addr,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER] HTTP server failed", nil, err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info(ctx, "[SHUTDOWN] Signal received, draining connections", nil)
	shutdownCtx, cancel := context.WithTimeout(ctx, appCfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN] Graceful shutdown failed", nil, err)
		os.Exit(1)
	}
	logger.Info(ctx, "[SHUTDOWN] Server stopped", nil)
}
