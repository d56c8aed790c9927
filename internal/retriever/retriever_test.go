package retriever

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datastream-pipeline/internal/config"
	"datastream-pipeline/internal/converters"
	"datastream-pipeline/internal/models"
	"datastream-pipeline/pkg/logging"
	"datastream-pipeline/pkg/units"
)

func testLogger() *logging.StructuredLogger {
	return logging.NewStructuredLogger("test", "dev", logging.ErrorLevel)
}

func ingestConfig() *config.PipelineConfig {
	return &config.PipelineConfig{
		Pipeline: config.PipelineInfo{Name: "met", Location: "sgp", Level: "b1"},
		Dataset: config.DatasetConfig{
			Coords: []config.VariableConfig{
				{Name: "time", Dims: []string{"time"}, Units: "s"},
			},
			DataVars: []config.VariableConfig{
				{Name: "temperature", Dims: []string{"time"}, Units: "degC"},
			},
		},
		Retriever: config.RetrieverConfig{
			Rules: map[string][]config.RuleConfig{
				"time": {
					{Pattern: `\.met\.`, Source: "timestamp", Converters: []config.ConverterConfig{
						{Name: "string_time", Params: map[string]interface{}{"format": "%Y-%m-%d %H:%M:%S"}},
					}},
				},
				"temperature": {
					{Pattern: `\.met\.`, Source: "temp_f", Converters: []config.ConverterConfig{
						{Name: "units", Params: map[string]interface{}{"input_units": "degF"}},
					}},
				},
			},
		},
	}
}

func rawInput() map[string]*models.Dataset {
	ds := models.NewDataset("sgp.met.00")
	timeVar := &models.Variable{
		Name:  "timestamp",
		Dims:  []string{"time"},
		Attrs: make(models.Attributes),
		Raw:   []string{"2026-08-25 00:00:00", "2026-08-25 00:01:00"},
	}
	ds.Dims["time"] = 2
	ds.Coords = append(ds.Coords, timeVar)
	temp := models.NewVariable("temp_f", []string{"time"}, []float64{32, 212})
	ds.DataVars = append(ds.DataVars, temp)
	return map[string]*models.Dataset{"sgp.met.00": ds}
}

func TestRetrieve_EndToEnd(t *testing.T) {
	r, err := New(ingestConfig(), converters.DefaultRegistry(), units.NewService(), testLogger(), nil)
	require.NoError(t, err)

	out, err := r.Retrieve(context.Background(), rawInput(), models.Interval{})
	require.NoError(t, err)

	assert.Equal(t, "sgp.met.b1", out.Name)

	tc := out.Coord("time")
	require.NotNil(t, tc)
	assert.Nil(t, tc.Raw)
	assert.InDelta(t, 60.0, tc.Values[1]-tc.Values[0], 1e-9)

	temp := out.DataVar("temperature")
	require.NotNil(t, temp)
	assert.InDelta(t, 0.0, temp.Values[0], 1e-9)
	assert.InDelta(t, 100.0, temp.Values[1], 1e-9)
	assert.Equal(t, "degC", temp.Attrs.Units())
}

func TestRetrieve_OutputNeverAliasesInput(t *testing.T) {
	r, err := New(ingestConfig(), converters.DefaultRegistry(), units.NewService(), testLogger(), nil)
	require.NoError(t, err)

	inputs := rawInput()
	out, err := r.Retrieve(context.Background(), inputs, models.Interval{})
	require.NoError(t, err)

	out.DataVar("temperature").Values[0] = 999
	assert.Equal(t, 32.0, inputs["sgp.met.00"].DataVar("temp_f").Values[0])
}

func TestRetrieve_FirstMatchWinsAcrossRules(t *testing.T) {
	cfg := ingestConfig()
	// Both rules match the same input; only the first one's chain runs
	cfg.Retriever.Rules["temperature"] = []config.RuleConfig{
		{Pattern: `\.met\.`, Source: "temp_f", Converters: []config.ConverterConfig{
			{Name: "units", Params: map[string]interface{}{"input_units": "degF"}},
		}},
		{Pattern: `sgp\.`, Source: "temp_f"},
	}

	r, err := New(cfg, converters.DefaultRegistry(), units.NewService(), testLogger(), nil)
	require.NoError(t, err)

	out, err := r.Retrieve(context.Background(), rawInput(), models.Interval{})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, out.DataVar("temperature").Values[0], 1e-9)
}

func TestRetrieve_FallsThroughToLaterRule(t *testing.T) {
	cfg := ingestConfig()
	// First rule's pattern matches no identifier; the second provides the data
	cfg.Retriever.Rules["temperature"] = []config.RuleConfig{
		{Pattern: `\.aos\.`, Source: "temp_f"},
		{Pattern: `\.met\.`, Source: "temp_f", Converters: []config.ConverterConfig{
			{Name: "units", Params: map[string]interface{}{"input_units": "degF"}},
		}},
	}

	r, err := New(cfg, converters.DefaultRegistry(), units.NewService(), testLogger(), nil)
	require.NoError(t, err)

	out, err := r.Retrieve(context.Background(), rawInput(), models.Interval{})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, out.DataVar("temperature").Values[0], 1e-9)
}

func TestRetrieve_Deterministic(t *testing.T) {
	cfg := ingestConfig()
	cfg.Retriever.Rules["temperature"] = []config.RuleConfig{
		{Pattern: `^sgp\.`, Source: "temp_f", Converters: []config.ConverterConfig{
			{Name: "units", Params: map[string]interface{}{"input_units": "degF"}},
		}},
	}

	inputs := rawInput()
	// A second dataset also matches the pattern; sorted identifier order
	// makes sgp.aos.00 win every run.
	decoy := models.NewDataset("sgp.aos.00")
	decoy.Dims["time"] = 2
	decoy.DataVars = append(decoy.DataVars,
		models.NewVariable("temp_f", []string{"time"}, []float64{32, 32}))
	decoy.Coords = append(decoy.Coords, inputs["sgp.met.00"].Coord("timestamp").Copy())
	inputs["sgp.aos.00"] = decoy

	r, err := New(cfg, converters.DefaultRegistry(), units.NewService(), testLogger(), nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		out, err := r.Retrieve(context.Background(), inputs, models.Interval{})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, out.DataVar("temperature").Values[0], 1e-9)
	}
}

func TestRetrieve_MandatoryCoordinateMissing(t *testing.T) {
	cfg := ingestConfig()
	cfg.Retriever.Rules["time"] = []config.RuleConfig{
		{Pattern: `\.radar\.`, Source: "timestamp"},
	}

	r, err := New(cfg, converters.DefaultRegistry(), units.NewService(), testLogger(), nil)
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), rawInput(), models.Interval{})
	var retErr *RetrievalError
	require.ErrorAs(t, err, &retErr)
	assert.Equal(t, "time", retErr.Variable)
}

func TestRetrieve_SourceVariableAbsentIsFatal(t *testing.T) {
	cfg := ingestConfig()
	cfg.Retriever.Rules["temperature"] = []config.RuleConfig{
		{Pattern: `\.met\.`, Source: "no_such_column"},
	}

	r, err := New(cfg, converters.DefaultRegistry(), units.NewService(), testLogger(), nil)
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), rawInput(), models.Interval{})
	var retErr *RetrievalError
	require.ErrorAs(t, err, &retErr)
	assert.Equal(t, "temperature", retErr.Variable)
}

func TestRetrieve_OptionalVariableDropped(t *testing.T) {
	cfg := ingestConfig()
	cfg.Dataset.DataVars = append(cfg.Dataset.DataVars, config.VariableConfig{
		Name: "pressure", Dims: []string{"time"},
	})
	cfg.Retriever.Rules["pressure"] = []config.RuleConfig{
		{Pattern: `\.met\.`, Source: "press", Optional: true},
	}

	r, err := New(cfg, converters.DefaultRegistry(), units.NewService(), testLogger(), nil)
	require.NoError(t, err)

	out, err := r.Retrieve(context.Background(), rawInput(), models.Interval{})
	require.NoError(t, err)
	assert.Nil(t, out.DataVar("pressure"))
	assert.NotNil(t, out.DataVar("temperature"))
}

func TestRetrieve_GriddedRun(t *testing.T) {
	cfg := ingestConfig()
	cfg.Retriever.Transform = map[string]config.TransformConfig{
		"time": {Alignment: "CENTER", Width: config.Duration(600 * time.Second)},
	}
	cfg.Retriever.Rules["time"] = []config.RuleConfig{
		{Pattern: ".*", Converters: []config.ConverterConfig{
			{Name: "create_time_grid", Params: map[string]interface{}{"interval": "10m"}},
		}},
	}
	// No explicit transform step: bin_average is appended automatically
	cfg.Retriever.Rules["temperature"] = []config.RuleConfig{
		{Pattern: `\.met\.b1$`},
	}

	// Standardized source: numeric time coordinate, samples every 100s
	source := models.NewDataset("sgp.met.b1")
	begin := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	srcTimes := make([]float64, 18)
	srcVals := make([]float64, 18)
	for i := range srcTimes {
		srcTimes[i] = models.TimeToEpoch(begin) + float64(i*100)
		srcVals[i] = float64(i)
	}
	require.NoError(t, source.AddCoord(models.NewVariable("time", []string{"time"}, srcTimes)))
	require.NoError(t, source.AddDataVar(models.NewVariable("temperature", []string{"time"}, srcVals)))

	r, err := New(cfg, converters.DefaultRegistry(), units.NewService(), testLogger(), nil)
	require.NoError(t, err)

	interval := models.Interval{Begin: begin, End: begin.Add(30 * time.Minute)}
	out, err := r.Retrieve(context.Background(), map[string]*models.Dataset{"sgp.met.b1": source}, interval)
	require.NoError(t, err)

	tc := out.Coord("time")
	require.NotNil(t, tc)
	assert.Len(t, tc.Values, 3)

	temp := out.DataVar("temperature")
	require.NotNil(t, temp)
	assert.Len(t, temp.Values, 3)

	frac := out.DataVar("qc_temperature_excluded_fraction")
	require.NotNil(t, frac)
	assert.Len(t, frac.Values, 3)
}

func TestNew_GridCreatorMustLeadChain(t *testing.T) {
	cfg := ingestConfig()
	cfg.Retriever.Rules["time"] = []config.RuleConfig{
		{Pattern: ".*", Converters: []config.ConverterConfig{
			{Name: "units", Params: map[string]interface{}{"input_units": "s"}},
			{Name: "create_time_grid", Params: map[string]interface{}{"interval": "10m"}},
		}},
	}

	_, err := New(cfg, converters.DefaultRegistry(), units.NewService(), testLogger(), nil)
	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestNew_BadPatternIsConfigurationError(t *testing.T) {
	cfg := ingestConfig()
	cfg.Retriever.Rules["temperature"] = []config.RuleConfig{{Pattern: "(unclosed"}}

	_, err := New(cfg, converters.DefaultRegistry(), units.NewService(), testLogger(), nil)
	var cfgErr *config.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
}
