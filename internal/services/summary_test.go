package services

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datastream-pipeline/internal/config"
	"datastream-pipeline/internal/models"
	"datastream-pipeline/pkg/logging"
)

func TestSummarize(t *testing.T) {
	v := models.NewVariable("x", []string{"time"}, []float64{1, 2, math.NaN(), 3})

	s := summarize(v)
	assert.Equal(t, 3, s.Valid)
	assert.Equal(t, 1, s.Missing)
	assert.InDelta(t, 2.0, s.Mean, 1e-9)
	assert.InDelta(t, 1.0, s.Min, 1e-9)
	assert.InDelta(t, 3.0, s.Max, 1e-9)
}

func TestSummarize_AllMissing(t *testing.T) {
	v := models.NewVariable("x", []string{"time"}, []float64{math.NaN(), math.NaN()})

	s := summarize(v)
	assert.Equal(t, 0, s.Valid)
	assert.Equal(t, 2, s.Missing)
	assert.True(t, math.IsNaN(s.Mean))
}

func TestIngestService_TriggerMatching(t *testing.T) {
	cfg := &config.PipelineConfig{
		Pipeline: config.PipelineInfo{
			Name: "met", Location: "sgp", Level: "b1",
			Triggers: []string{`\.met\..*\.csv$`},
		},
	}

	s, err := NewIngestService(cfg, nil, nil, nil, nil,
		logging.NewStructuredLogger("test", "dev", logging.ErrorLevel), nil, Hooks{})
	require.NoError(t, err)

	assert.True(t, s.Matches("/data/sgp.met.00.20260825.csv"))
	assert.False(t, s.Matches("/data/sgp.aos.00.20260825.csv"))
}

func TestIngestService_NoTriggersMatchEverything(t *testing.T) {
	cfg := &config.PipelineConfig{
		Pipeline: config.PipelineInfo{Name: "met", Location: "sgp", Level: "b1"},
	}

	s, err := NewIngestService(cfg, nil, nil, nil, nil,
		logging.NewStructuredLogger("test", "dev", logging.ErrorLevel), nil, Hooks{})
	require.NoError(t, err)
	assert.True(t, s.Matches("anything.dat"))
}

func TestNewIngestService_BadTrigger(t *testing.T) {
	cfg := &config.PipelineConfig{
		Pipeline: config.PipelineInfo{
			Name: "met", Location: "sgp", Level: "b1",
			Triggers: []string{"(unclosed"},
		},
	}

	_, err := NewIngestService(cfg, nil, nil, nil, nil,
		logging.NewStructuredLogger("test", "dev", logging.ErrorLevel), nil, Hooks{})
	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestNewVapService_RequiresInputDatastreams(t *testing.T) {
	cfg := &config.PipelineConfig{
		Pipeline: config.PipelineInfo{Name: "met", Location: "sgp", Level: "c1"},
	}

	_, err := NewVapService(cfg, nil, nil, nil,
		logging.NewStructuredLogger("test", "dev", logging.ErrorLevel), nil, Hooks{})
	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestNewRunContext(t *testing.T) {
	ctx, runID := newRunContext(context.Background(), "sgp.met.b1")
	assert.NotEmpty(t, runID)
	assert.Equal(t, runID, ctx.Value(logging.RunIDKey))
	assert.Equal(t, "sgp.met.b1", ctx.Value(logging.DatastreamKey))
}
