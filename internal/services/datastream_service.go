package services

import (
	"context"
	"fmt"

	"datastream-pipeline/internal/models"
	"datastream-pipeline/internal/repository"
	"datastream-pipeline/pkg/logging"
)

// DatastreamService answers read queries against stored datastreams. Backs
// the HTTP API.
type DatastreamService struct {
	repo   *repository.DatastreamRepository
	logger *logging.StructuredLogger
	fill   float64
}

// NewDatastreamService creates the query service. fill is the stored
// missing-value marker converted back to NaN on load.
func NewDatastreamService(repo *repository.DatastreamRepository, logger *logging.StructuredLogger, fill float64) *DatastreamService {
	return &DatastreamService{repo: repo, logger: logger, fill: fill}
}

// ListDatastreams returns all known datastreams
func (s *DatastreamService) ListDatastreams(ctx context.Context) ([]repository.DatastreamRecord, error) {
	return s.repo.ListDatastreams(ctx)
}

// ListDatasets returns the stored dataset records of one datastream
// overlapping the interval.
func (s *DatastreamService) ListDatasets(ctx context.Context, datastreamID string, interval models.Interval) ([]repository.DatasetRecord, error) {
	return s.repo.FindDatasets(ctx, datastreamID, interval)
}

// GetData loads and merges a datastream's stored datasets over the interval
// into one time-ordered dataset.
func (s *DatastreamService) GetData(ctx context.Context, datastreamID string, interval models.Interval) (*models.Dataset, error) {
	records, err := s.repo.FindDatasets(ctx, datastreamID, interval)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("datastream %s has no data for the interval: %w", datastreamID, repository.ErrNotFound)
	}

	var merged *models.Dataset
	for _, rec := range records {
		ds, err := s.repo.LoadDataset(ctx, rec.ID, s.fill)
		if err != nil {
			return nil, err
		}
		if merged == nil {
			merged = ds
			continue
		}
		if err := merged.ConcatTime(ds); err != nil {
			return nil, fmt.Errorf("stored fragments of %s are inconsistent: %w", datastreamID, err)
		}
	}

	s.logger.Debug(ctx, "[QUERY] Datastream data assembled", logging.Fields{
		"datastream": datastreamID,
		"fragments":  len(records),
		"samples":    merged.Dims[models.TimeDim],
	})
	return merged, nil
}

// HealthCheck verifies the storage backend is reachable
func (s *DatastreamService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}
