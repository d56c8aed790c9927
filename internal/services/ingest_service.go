package services

import (
	"context"
	"fmt"
	"regexp"

	"datastream-pipeline/internal/config"
	"datastream-pipeline/internal/models"
	"datastream-pipeline/internal/quality"
	"datastream-pipeline/internal/reader"
	"datastream-pipeline/internal/repository"
	"datastream-pipeline/internal/retriever"
	"datastream-pipeline/pkg/logging"
	"datastream-pipeline/pkg/metrics"
)

// IngestService runs the raw-to-standardized pipeline: read raw files,
// retrieve onto the output schema, apply quality management, and persist.
// The processing interval is taken from the data itself.
type IngestService struct {
	cfg       *config.PipelineConfig
	reader    reader.Reader
	retriever *retriever.Retriever
	engine    *quality.Engine
	repo      *repository.DatastreamRepository
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
	hooks     Hooks
	triggers  []*regexp.Regexp
}

// NewIngestService wires an ingest pipeline from its compiled components
func NewIngestService(cfg *config.PipelineConfig, rd reader.Reader, rt *retriever.Retriever, engine *quality.Engine, repo *repository.DatastreamRepository, logger *logging.StructuredLogger, collector *metrics.Collector, hooks Hooks) (*IngestService, error) {
	triggers := make([]*regexp.Regexp, 0, len(cfg.Pipeline.Triggers))
	for _, t := range cfg.Pipeline.Triggers {
		re, err := regexp.Compile(t)
		if err != nil {
			return nil, config.NewConfigurationError("pipeline/triggers", "invalid trigger pattern", err)
		}
		triggers = append(triggers, re)
	}
	return &IngestService{
		cfg:       cfg,
		reader:    rd,
		retriever: rt,
		engine:    engine,
		repo:      repo,
		logger:    logger,
		metrics:   collector,
		hooks:     hooks,
		triggers:  triggers,
	}, nil
}

// Matches reports whether this pipeline's trigger patterns claim the input
// key. Pipelines with no triggers claim everything.
func (s *IngestService) Matches(key string) bool {
	if len(s.triggers) == 0 {
		return true
	}
	for _, re := range s.triggers {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}

// Run processes the given input keys as one dataset
func (s *IngestService) Run(ctx context.Context, keys []string) (*RunResult, error) {
	ctx, runID := newRunContext(ctx, s.cfg.Pipeline.DatastreamID())
	timer := s.startTimer("ingest")
	defer timer.stop()

	s.logger.Info(ctx, "[INGEST_START] Ingest run starting", logging.Fields{
		"inputs": keys,
	})

	result, err := s.run(ctx, runID, keys)
	if err != nil {
		s.recordRun("ingest", "failed")
		s.logger.Error(ctx, "[INGEST_FAILED] Ingest run failed", logging.Fields{
			"inputs": keys,
		}, err)
		return nil, err
	}
	s.recordRun("ingest", "succeeded")
	return result, nil
}

func (s *IngestService) run(ctx context.Context, runID string, keys []string) (*RunResult, error) {
	inputs := make(map[string]*models.Dataset)
	for _, key := range keys {
		if !s.Matches(key) {
			return nil, fmt.Errorf("input %s does not match any trigger pattern of pipeline %s", key, s.cfg.Pipeline.Name)
		}
		loaded, err := s.reader.Read(key)
		if err != nil {
			return nil, fmt.Errorf("failed to read input %s: %w", key, err)
		}
		for name, ds := range loaded {
			inputs[name] = ds
		}
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no input datasets to process")
	}

	if s.hooks.AfterRead != nil {
		if err := s.hooks.AfterRead(ctx, inputs); err != nil {
			return nil, fmt.Errorf("after-read hook failed: %w", err)
		}
	}

	// Ingest runs derive their interval from content, so retrieval sees a
	// zero interval and time comes straight from the parsed coordinate.
	out, err := s.retriever.Retrieve(ctx, inputs, models.Interval{})
	if err != nil {
		return nil, err
	}

	interval, err := out.TimeInterval()
	if err != nil {
		return nil, err
	}

	if s.hooks.AfterRetrieval != nil {
		if err := s.hooks.AfterRetrieval(ctx, out); err != nil {
			return nil, fmt.Errorf("after-retrieval hook failed: %w", err)
		}
	}

	if err := s.engine.Run(ctx, out); err != nil {
		return nil, err
	}

	if s.hooks.BeforeStorage != nil {
		if err := s.hooks.BeforeStorage(ctx, out); err != nil {
			return nil, fmt.Errorf("before-storage hook failed: %w", err)
		}
	}

	logSummaries(ctx, s.logger, out)
	flagged := quality.FlagSummary(out)

	datasetID, err := s.repo.SaveDataset(ctx, out, interval, s.cfg.Storage.FillOrDefault())
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.DatasetsWritten.Inc()
	}

	s.logger.Info(ctx, "[INGEST_DONE] Ingest run complete", logging.Fields{
		"dataset_id": datasetID.String(),
		"interval":   interval.String(),
		"variables":  len(out.VarNames()),
	})

	return &RunResult{
		RunID:      runID,
		DatasetID:  datasetID,
		Datastream: out.Name,
		Interval:   interval,
		Variables:  len(out.VarNames()),
		Flagged:    flagged,
	}, nil
}

// runTimer wraps the optional pipeline duration histogram
type runTimer struct {
	timer *metrics.Timer
}

func (s *IngestService) startTimer(mode string) runTimer {
	if s.metrics == nil {
		return runTimer{}
	}
	return runTimer{timer: s.metrics.NewTimer(s.metrics.PipelineRunDuration.WithLabelValues(mode))}
}

func (t runTimer) stop() {
	if t.timer != nil {
		t.timer.ObserveDuration()
	}
}

func (s *IngestService) recordRun(mode, status string) {
	if s.metrics != nil {
		s.metrics.RecordPipelineRun(mode, status)
	}
}
