// Command ingester runs one ingest pipeline invocation: raw input files in,
// one standardized dataset out.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"datastream-pipeline/internal/config"
	"datastream-pipeline/internal/converters"
	"datastream-pipeline/internal/quality"
	"datastream-pipeline/internal/reader"
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
		readerName   = flag.String("reader", "csv", "Input reader to use")
	)
	flag.Parse()

	if *pipelinePath == "" || flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: ingester -pipeline <pipeline.yaml> [-reader csv] <input file> [...]")
		os.Exit(2)
	}

	appCfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("ingester", version, logging.ParseLevel(appCfg.Logging.Level))
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

	rd, err := reader.DefaultRegistry().Build(*readerName, nil)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP] Failed to build reader", logging.Fields{
			"reader": *readerName,
		}, err)
	}

	rt, err := retriever.New(pipelineCfg, converters.DefaultRegistry(), units.NewService(), logger, collector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP] Failed to compile retrieval plan", nil, err)
	}

	engine, err := quality.NewEngine(pipelineCfg.Quality, quality.DefaultCheckers(), quality.DefaultHandlers(), logger, collector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP] Failed to compile quality managers", nil, err)
	}

	repo := repository.NewDatastreamRepository(db, logger)
	svc, err := services.NewIngestService(pipelineCfg, rd, rt, engine, repo, logger, collector, services.Hooks{})
	if err != nil {
		logger.Fatal(ctx, "[STARTUP] Failed to build ingest service", nil, err)
	}

	result, err := svc.Run(ctx, flag.Args())
	if err != nil {
		os.Exit(1)
	}

	fmt.Printf("dataset %s written for %s over %s (%d variables)\n",
		result.DatasetID, result.Datastream, result.Interval, result.Variables)
}
