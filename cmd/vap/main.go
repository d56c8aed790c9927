// Command vap runs one value-added-product pipeline invocation over an
// explicit processing interval, regridding stored input datastreams onto the
// pipeline's output grid.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"datastream-pipeline/internal/config"
	"datastream-pipeline/internal/converters"
	"datastream-pipeline/internal/models"
	"datastream-pipeline/internal/quality"
	"datastream-pipeline/internal/repository"
	"datastream-pipeline/internal/retriever"
	"datastream-pipeline/internal/services"
	"datastream-pipeline/pkg/database"
	"datastream-pipeline/pkg/logging"
	"datastream-pipeline/pkg/metrics"
	"datastream-pipeline/pkg/units"
)

var version = "dev"

func main() {
	var (
		pipelinePath = flag.String("pipeline", "", "Path to the pipeline configuration file")
		beginFlag    = flag.String("begin", "", "Interval begin (RFC 3339)")
		endFlag      = flag.String("end", "", "Interval end (RFC 3339)")
	)
	flag.Parse()

	if *pipelinePath == "" || *beginFlag == "" || *endFlag == "" {
		fmt.Fprintln(os.Stderr, "usage: vap -pipeline <pipeline.yaml> -begin <RFC3339> -end <RFC3339>")
		os.Exit(2)
	}

	begin, err := time.Parse(time.RFC3339, *beginFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -begin: %v\n", err)
		os.Exit(2)
	}
	end, err := time.Parse(time.RFC3339, *endFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -end: %v\n", err)
		os.Exit(2)
	}

	appCfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("vap", version, logging.ParseLevel(appCfg.Logging.Level))
	collector := metrics.NewCollector("datastream_pipeline")
	ctx := context.Background()

	pipelineCfg, err := config.LoadPipeline(*pipelinePath)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP] Failed to load pipeline configuration", logging.Fields{
			"path": *pipelinePath,
		}, err)
	}

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

	rt, err := retriever.New(pipelineCfg, converters.DefaultRegistry(), units.NewService(), logger, collector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP] Failed to compile retrieval plan", nil, err)
	}

	engine, err := quality.NewEngine(pipelineCfg.Quality, quality.DefaultCheckers(), quality.DefaultHandlers(), logger, collector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP] Failed to compile quality managers", nil, err)
	}

	repo := repository.NewDatastreamRepository(db, logger)
	svc, err := services.NewVapService(pipelineCfg, rt, engine, repo, logger, collector, services.Hooks{})
	if err != nil {
		logger.Fatal(ctx, "[STARTUP] Failed to build vap service", nil, err)
	}

	result, err := svc.Run(ctx, models.Interval{Begin: begin, End: end})
	if err != nil {
		os.Exit(1)
	}

	fmt.Printf("dataset %s written for %s over %s (%d variables)\n",
		result.DatasetID, result.Datastream, result.Interval, result.Variables)
}
