package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func validBase(t *testing.T) Document {
	t.Helper()

	text := `
pipeline:
  name: met
  location: sgp
  level: b1
  triggers:
    - ".*met.*\\.csv"
dataset:
  attrs:
    title: Surface Meteorology
  coords:
    - name: time
      units: s
  data_vars:
    - name: temperature
      dims: [time]
      units: degC
      valid_min: -60
      valid_max: 60
retriever:
  fetch_padding: 600s
  rules:
    time:
      - pattern: ".*"
        source: Timestamp
        converters:
          - converter: string_time
            format: "%Y-%m-%d %H:%M:%S"
    temperature:
      - pattern: ".*"
        source: T_degF
        converters:
          - converter: units
            input_units: degF
quality_management:
  - name: require_valid_range
    checker:
      name: valid_max
    handlers:
      - name: record_quality
        assessment: bad
        meaning: "value above valid_max"
    apply_to:
      to: DATA_VARS
storage:
  fill_value: -9999
`
	var doc Document
	require.NoError(t, yaml.Unmarshal([]byte(text), &doc))
	return doc
}

func TestResolve_Valid(t *testing.T) {
	cfg, err := Resolve(validBase(t), nil)
	require.NoError(t, err)

	assert.Equal(t, "sgp.met.b1", cfg.Pipeline.DatastreamID())
	assert.Equal(t, 10*time.Minute, cfg.Retriever.FetchPadding.Std())
	require.Len(t, cfg.Dataset.DataVars, 1)
	assert.Equal(t, "degC", cfg.Dataset.DataVars[0].Units)
	require.Len(t, cfg.Retriever.Rules["temperature"], 1)
	assert.Equal(t, "units", cfg.Retriever.Rules["temperature"][0].Converters[0].Name)
	assert.Equal(t, "degF", cfg.Retriever.Rules["temperature"][0].Converters[0].Params["input_units"])
	assert.Equal(t, -9999.0, cfg.Storage.FillOrDefault())
}

func TestResolve_OverrideChangesTypedResult(t *testing.T) {
	cfg, err := Resolve(validBase(t), []Override{
		{Path: "dataset/data_vars/0/units", Value: "K"},
		{Path: "pipeline/location", Value: "nsa"},
	})
	require.NoError(t, err)

	assert.Equal(t, "K", cfg.Dataset.DataVars[0].Units)
	assert.Equal(t, "nsa.met.b1", cfg.Pipeline.DatastreamID())
}

func TestResolve_TypeIncompatibleOverride(t *testing.T) {
	_, err := Resolve(validBase(t), []Override{
		{Path: "dataset/data_vars", Value: "not-a-list"},
	})
	require.Error(t, err)

	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestResolve_MissingRequiredField(t *testing.T) {
	base := validBase(t)
	delete(base["pipeline"].(Document), "name")

	_, err := Resolve(base, nil)
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Path, "Name")
}

func TestResolve_UndeclaredDimension(t *testing.T) {
	_, err := Resolve(validBase(t), []Override{
		{Path: "dataset/data_vars/0/dims", Value: []interface{}{"height"}},
	})
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Path, "temperature")
}

func TestResolve_CoordinateWithoutRules(t *testing.T) {
	base := validBase(t)
	rules := base["retriever"].(Document)["rules"].(Document)
	delete(rules, "time")

	_, err := Resolve(base, nil)
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Path, "rules/time")
}

func TestResolve_BadRulePattern(t *testing.T) {
	_, err := Resolve(validBase(t), []Override{
		{Path: "retriever/rules/temperature/0/pattern", Value: "("},
	})
	require.Error(t, err)
}

func TestThresholds_Defaults(t *testing.T) {
	var th ThresholdsConfig
	assert.Equal(t, 0.5, th.IndeterminateOrDefault())
	assert.Equal(t, 0.9, th.BadOrDefault())

	custom := 0.25
	th.Indeterminate = &custom
	assert.Equal(t, 0.25, th.IndeterminateOrDefault())
}

func TestLoadPipeline_RoleDocuments(t *testing.T) {
	dir := t.TempDir()

	write := func(name, text string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644))
	}

	write("dataset.yaml", `
coords:
  - name: time
    units: s
data_vars:
  - name: temperature
    dims: [time]
    units: degC
`)
	write("retriever.yaml", `
rules:
  time:
    - pattern: ".*"
      source: Timestamp
  temperature:
    - pattern: ".*"
      source: T
`)
	write("quality.yaml", `
- name: missing_check
  checker:
    name: missing
  handlers:
    - name: record_quality
      assessment: bad
      meaning: "value is missing"
`)
	write("storage.yaml", `
fill_value: -1
`)
	write("pipeline.yaml", `
pipeline:
  name: met
  location: sgp
  level: b1
config:
  dataset: dataset.yaml
  retriever: retriever.yaml
  quality_management: quality.yaml
  storage: storage.yaml
overrides:
  - path: dataset/data_vars/0/units
    value: K
`)

	cfg, err := LoadPipeline(filepath.Join(dir, "pipeline.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "K", cfg.Dataset.DataVars[0].Units)
	assert.Equal(t, -1.0, cfg.Storage.FillOrDefault())
	require.Len(t, cfg.Quality, 1)
	assert.Equal(t, "missing", cfg.Quality[0].Checker.Name)
}
