// Package converters implements the per-variable transformation steps the
// retriever chains together: unit conversion, time parsing, grid creation,
// and windowed regridding. Converters are resolved from configuration
// through a string-keyed registry at pipeline construction time.
package converters

import (
	"fmt"

	"datastream-pipeline/internal/config"
	"datastream-pipeline/internal/models"
	"datastream-pipeline/pkg/units"
)

// Context carries the shared state a converter may read: the output schema
// for its variable, the input dataset the variable came from, the output
// dataset as retrieved so far, the processing interval, and the global
// transformation parameters.
type Context struct {
	VariableName string
	Target       *config.VariableConfig
	Source       *models.Dataset
	Retrieved    *models.Dataset
	Interval     models.Interval
	Transform    map[string]config.TransformConfig
	Units        units.Service

	// Companions collects derived variables a converter produces alongside
	// its main output, e.g. the transform engine's excluded-fraction metric.
	Companions []*models.Variable
}

// Converter is one transformation step. A nil, nil return means the step is
// inapplicable to this variable and contributes nothing; the chain continues
// with the previous value.
type Converter interface {
	Convert(v *models.Variable, ctx *Context) (*models.Variable, error)
}

// Chain is an ordered converter sequence applied to one variable
type Chain []Converter

// Run applies every step in order. Steps returning nil are skipped over;
// errors abort the chain.
func (c Chain) Run(v *models.Variable, ctx *Context) (*models.Variable, error) {
	current := v
	for i, step := range c {
		out, err := step.Convert(current, ctx)
		if err != nil {
			return nil, fmt.Errorf("converter %d for variable %s: %w", i, ctx.VariableName, err)
		}
		if out != nil {
			current = out
		}
	}
	return current, nil
}

// UnitError reports an impossible unit conversion. Fatal for the interval
// unless the offending variable is optional.
type UnitError struct {
	Variable string
	From     string
	To       string
	Err      error
}

// Error implements the error interface
func (e *UnitError) Error() string {
	return fmt.Sprintf("unit conversion failed for variable %s (%s -> %s): %v", e.Variable, e.From, e.To, e.Err)
}

// Unwrap allows errors.Is and errors.As to reach the cause
func (e *UnitError) Unwrap() error {
	return e.Err
}

// TimeParseError reports an unparseable raw time value. Fatal for the
// enclosing retrieval of that variable.
type TimeParseError struct {
	Variable string
	Value    string
	Format   string
	Err      error
}

// Error implements the error interface
func (e *TimeParseError) Error() string {
	return fmt.Sprintf("failed to parse time %q for variable %s with format %q: %v", e.Value, e.Variable, e.Format, e.Err)
}

// Unwrap allows errors.Is and errors.As to reach the cause
func (e *TimeParseError) Unwrap() error {
	return e.Err
}
