package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration with YAML support for "600s"-style strings
// and bare numbers interpreted as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var asString string
	if err := value.Decode(&asString); err == nil {
		parsed, err := time.ParseDuration(asString)
		if err != nil {
			return fmt.Errorf("failed to parse duration %q: %w", asString, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var asSeconds float64
	if err := value.Decode(&asSeconds); err != nil {
		return fmt.Errorf("duration must be a string or a number of seconds: %w", err)
	}
	*d = Duration(time.Duration(asSeconds * float64(time.Second)))
	return nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// PipelineConfig is the validated result of resolving a pipeline document.
// It is immutable after Resolve returns.
type PipelineConfig struct {
	Pipeline  PipelineInfo           `yaml:"pipeline" validate:"required"`
	Dataset   DatasetConfig          `yaml:"dataset" validate:"required"`
	Retriever RetrieverConfig        `yaml:"retriever" validate:"required"`
	Quality   []QualityManagerConfig `yaml:"quality_management" validate:"dive"`
	Storage   StorageConfig          `yaml:"storage"`
}

// PipelineInfo identifies the pipeline and its output datastream
type PipelineInfo struct {
	Name     string   `yaml:"name" validate:"required"`
	Location string   `yaml:"location" validate:"required"`
	Level    string   `yaml:"level" validate:"required"`
	Triggers []string `yaml:"triggers"`
}

// DatastreamID builds the location.name.level datastream identifier
func (p PipelineInfo) DatastreamID() string {
	return fmt.Sprintf("%s.%s.%s", p.Location, p.Name, p.Level)
}

// DatasetConfig declares the output dataset schema
type DatasetConfig struct {
	Attrs    map[string]interface{} `yaml:"attrs"`
	Coords   []VariableConfig       `yaml:"coords" validate:"min=1,dive"`
	DataVars []VariableConfig       `yaml:"data_vars" validate:"dive"`
}

// Coord returns the named coordinate declaration, or nil
func (d *DatasetConfig) Coord(name string) *VariableConfig {
	for i := range d.Coords {
		if d.Coords[i].Name == name {
			return &d.Coords[i]
		}
	}
	return nil
}

// VariableConfig declares one output variable and its metadata
type VariableConfig struct {
	Name         string                 `yaml:"name" validate:"required"`
	Dims         []string               `yaml:"dims"`
	Units        string                 `yaml:"units"`
	LongName     string                 `yaml:"long_name"`
	StandardName string                 `yaml:"standard_name"`
	ValidMin     *float64               `yaml:"valid_min"`
	ValidMax     *float64               `yaml:"valid_max"`
	FillValue    *float64               `yaml:"fill_value"`
	Attrs        map[string]interface{} `yaml:"attrs"`
}

// RetrieverConfig declares where and how each output variable is sourced
type RetrieverConfig struct {
	// InputDatastreams lists source datastream IDs fetched from storage in
	// transform (vap) runs; ingest runs take their inputs from the reader.
	InputDatastreams []string `yaml:"input_datastreams"`

	// FetchPadding widens the source query interval on both sides so edge
	// windows of an output grid have enough context.
	FetchPadding Duration `yaml:"fetch_padding"`

	// Transform holds per-dimension regridding parameters
	Transform map[string]TransformConfig `yaml:"transform"`

	// Rules maps each output variable to its ordered retrieval rules
	Rules map[string][]RuleConfig `yaml:"rules" validate:"required"`
}

// TransformConfig holds alignment/width/range regridding parameters for one
// dimension, plus the exclusion-fraction thresholds that escalate a point's
// assessment.
type TransformConfig struct {
	Alignment  string           `yaml:"alignment" validate:"omitempty,oneof=LEFT CENTER RIGHT"`
	Width      Duration         `yaml:"width"`
	Range      Duration         `yaml:"range"`
	Thresholds ThresholdsConfig `yaml:"quality_thresholds"`
}

// ThresholdsConfig configures exclusion-fraction escalation. The boundary is
// inclusive: a fraction equal to the threshold escalates.
type ThresholdsConfig struct {
	Indeterminate *float64 `yaml:"indeterminate" validate:"omitempty,gte=0,lte=1"`
	Bad           *float64 `yaml:"bad" validate:"omitempty,gte=0,lte=1"`
}

// Default escalation thresholds
const (
	DefaultIndeterminateThreshold = 0.5
	DefaultBadThreshold           = 0.9
)

// IndeterminateOrDefault returns the configured indeterminate threshold
func (t ThresholdsConfig) IndeterminateOrDefault() float64 {
	if t.Indeterminate != nil {
		return *t.Indeterminate
	}
	return DefaultIndeterminateThreshold
}

// BadOrDefault returns the configured bad threshold
func (t ThresholdsConfig) BadOrDefault() float64 {
	if t.Bad != nil {
		return *t.Bad
	}
	return DefaultBadThreshold
}

// RuleConfig is one (pattern, source, converter chain) retrieval rule.
// Pattern is matched against input identifiers (file paths or datastream
// keys); Source names the raw variable to extract from the first matching
// input, defaulting to the output variable's own name. Rules are evaluated
// in listed order and the first rule to produce a result wins.
type RuleConfig struct {
	Pattern    string            `yaml:"pattern" validate:"required"`
	Source     string            `yaml:"source"`
	Optional   bool              `yaml:"optional"`
	Converters []ConverterConfig `yaml:"converters"`
}

// ConverterConfig is a tagged converter-step descriptor: the registry key
// plus that converter's own parameters.
type ConverterConfig struct {
	Name   string                 `yaml:"converter" validate:"required"`
	Params map[string]interface{} `yaml:",inline"`
}

// QualityManagerConfig declares one checker/handler block
type QualityManagerConfig struct {
	Name     string            `yaml:"name" validate:"required"`
	Checker  ComponentConfig   `yaml:"checker" validate:"required"`
	Handlers []ComponentConfig `yaml:"handlers" validate:"min=1,dive"`
	Apply    ApplyConfig       `yaml:"apply_to"`
	Exclude  []string          `yaml:"exclude"`
}

// ComponentConfig references a registered checker or handler by key
type ComponentConfig struct {
	Name   string                 `yaml:"name" validate:"required"`
	Params map[string]interface{} `yaml:",inline"`
}

// Target selector values for quality manager blocks
const (
	TargetCoords   = "COORDS"
	TargetDataVars = "DATA_VARS"
	TargetVars     = "VARS"
)

// ApplyConfig selects the variables a quality manager block runs against
type ApplyConfig struct {
	To   string   `yaml:"to" validate:"omitempty,oneof=COORDS DATA_VARS VARS"`
	Vars []string `yaml:"vars"`
}

// StorageConfig holds persisted-output parameters
type StorageConfig struct {
	FillValue *float64 `yaml:"fill_value"`
}

// DefaultFillValue marks missing samples in persisted output
const DefaultFillValue = -9999.0

// FillOrDefault returns the configured fill value
func (s StorageConfig) FillOrDefault() float64 {
	if s.FillValue != nil {
		return *s.FillValue
	}
	return DefaultFillValue
}
