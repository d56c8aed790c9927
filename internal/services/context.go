// Package services orchestrates pipeline runs: reading or fetching input,
// retrieval onto the output schema, quality management, and persistence.
package services

import (
	"context"

	"github.com/google/uuid"

	"datastream-pipeline/internal/models"
	"datastream-pipeline/pkg/logging"
)

// Hooks are optional extension points invoked at fixed stages of a run.
// A nil hook is skipped; a hook error aborts the run.
type Hooks struct {
	// AfterRead runs on the raw input datasets before retrieval. Ingest only.
	AfterRead func(ctx context.Context, inputs map[string]*models.Dataset) error

	// AfterRetrieval runs on the standardized dataset before quality checks
	AfterRetrieval func(ctx context.Context, ds *models.Dataset) error

	// BeforeStorage runs on the final dataset before it is persisted
	BeforeStorage func(ctx context.Context, ds *models.Dataset) error
}

// RunResult summarizes one completed pipeline invocation
type RunResult struct {
	RunID      string
	DatasetID  uuid.UUID
	Datastream string
	Interval   models.Interval
	Variables  int
	Flagged    map[string]map[string]int
}

// newRunContext tags the context with a fresh run ID and the target
// datastream so every log line of the run carries both.
func newRunContext(ctx context.Context, datastream string) (context.Context, string) {
	runID := uuid.New().String()
	ctx = logging.WithRunID(ctx, runID)
	ctx = logging.WithDatastream(ctx, datastream)
	return ctx, runID
}
