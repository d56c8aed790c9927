package services

import (
	"context"
	"fmt"

	"datastream-pipeline/internal/config"
	"datastream-pipeline/internal/models"
	"datastream-pipeline/internal/quality"
	"datastream-pipeline/internal/repository"
	"datastream-pipeline/internal/retriever"
	"datastream-pipeline/pkg/logging"
	"datastream-pipeline/pkg/metrics"
)

// VapService runs the value-added-product pipeline: fetch standardized
// source datastreams from storage over a padded interval, regrid them onto
// the declared output grid, apply quality management, and persist.
type VapService struct {
	cfg       *config.PipelineConfig
	retriever *retriever.Retriever
	engine    *quality.Engine
	repo      *repository.DatastreamRepository
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
	hooks     Hooks
}

// NewVapService wires a vap pipeline from its compiled components
func NewVapService(cfg *config.PipelineConfig, rt *retriever.Retriever, engine *quality.Engine, repo *repository.DatastreamRepository, logger *logging.StructuredLogger, collector *metrics.Collector, hooks Hooks) (*VapService, error) {
	if len(cfg.Retriever.InputDatastreams) == 0 {
		return nil, config.NewConfigurationError("retriever/input_datastreams",
			"vap pipelines require at least one input datastream", nil)
	}
	return &VapService{
		cfg:       cfg,
		retriever: rt,
		engine:    engine,
		repo:      repo,
		logger:    logger,
		metrics:   collector,
		hooks:     hooks,
	}, nil
}

// Run produces the output dataset for one explicit interval
func (s *VapService) Run(ctx context.Context, interval models.Interval) (*RunResult, error) {
	ctx, runID := newRunContext(ctx, s.cfg.Pipeline.DatastreamID())
	timer := s.startTimer()
	defer timer.stop()

	s.logger.Info(ctx, "[VAP_START] Vap run starting", logging.Fields{
		"interval": interval.String(),
		"inputs":   s.cfg.Retriever.InputDatastreams,
	})

	result, err := s.run(ctx, runID, interval)
	if err != nil {
		s.recordRun("failed")
		s.logger.Error(ctx, "[VAP_FAILED] Vap run failed", logging.Fields{
			"interval": interval.String(),
		}, err)
		return nil, err
	}
	s.recordRun("succeeded")
	return result, nil
}

func (s *VapService) run(ctx context.Context, runID string, interval models.Interval) (*RunResult, error) {
	if interval.IsZero() || !interval.End.After(interval.Begin) {
		return nil, fmt.Errorf("vap runs require a non-empty processing interval")
	}

	padded := interval.Pad(s.cfg.Retriever.FetchPadding.Std())
	fill := s.cfg.Storage.FillOrDefault()

	inputs := make(map[string]*models.Dataset, len(s.cfg.Retriever.InputDatastreams))
	for _, dsID := range s.cfg.Retriever.InputDatastreams {
		merged, err := s.fetchDatastream(ctx, dsID, padded, fill)
		if err != nil {
			return nil, err
		}
		if merged == nil {
			s.logger.Warn(ctx, "[VAP_FETCH] No stored data for input datastream over interval", logging.Fields{
				"input_datastream": dsID,
				"interval":         padded.String(),
			})
			continue
		}
		inputs[dsID] = merged
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no input data found for interval %s", padded)
	}

	out, err := s.retriever.Retrieve(ctx, inputs, interval)
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

	datasetID, err := s.repo.SaveDataset(ctx, out, interval, fill)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.DatasetsWritten.Inc()
	}

	s.logger.Info(ctx, "[VAP_DONE] Vap run complete", logging.Fields{
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

// fetchDatastream loads and merges every stored dataset of one datastream
// overlapping the padded interval. Fragments merge in time order regardless
// of the order they were written.
func (s *VapService) fetchDatastream(ctx context.Context, dsID string, interval models.Interval, fill float64) (*models.Dataset, error) {
	records, err := s.repo.FindDatasets(ctx, dsID, interval)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	var merged *models.Dataset
	for _, rec := range records {
		ds, err := s.repo.LoadDataset(ctx, rec.ID, fill)
		if err != nil {
			return nil, err
		}
		if merged == nil {
			merged = ds
			continue
		}
		if err := merged.ConcatTime(ds); err != nil {
			return nil, fmt.Errorf("failed to merge stored fragments of %s: %w", dsID, err)
		}
	}

	s.logger.Debug(ctx, "[VAP_FETCH] Input datastream loaded", logging.Fields{
		"input_datastream": dsID,
		"fragments":        len(records),
		"samples":          merged.Dims[models.TimeDim],
	})
	return merged, nil
}

func (s *VapService) startTimer() runTimer {
	if s.metrics == nil {
		return runTimer{}
	}
	return runTimer{timer: s.metrics.NewTimer(s.metrics.PipelineRunDuration.WithLabelValues("vap"))}
}

func (s *VapService) recordRun(status string) {
	if s.metrics != nil {
		s.metrics.RecordPipelineRun("vap", status)
	}
}
