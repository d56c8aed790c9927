package converters

import (
	"fmt"

	"datastream-pipeline/internal/config"
	"datastream-pipeline/internal/models"
)

// timeGridParams are the typed parameters of the "create_time_grid" converter
type timeGridParams struct {
	// Interval is the fixed spacing between grid points
	Interval config.Duration `yaml:"interval"`
}

// timeGridCreator synthesizes a regular time coordinate spanning the
// processing interval, ignoring whatever raw variable the rule matched.
type timeGridCreator struct {
	step float64
}

// newTimeGridCreator is the registry factory for "create_time_grid"
func newTimeGridCreator(params map[string]interface{}) (Converter, error) {
	var p timeGridParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Interval.Std() <= 0 {
		return nil, fmt.Errorf("create_time_grid requires a positive interval parameter")
	}
	return &timeGridCreator{step: p.Interval.Std().Seconds()}, nil
}

// Convert emits grid points at fixed spacing over [begin, end). The input
// variable may be nil: grid creation depends only on the processing interval.
func (c *timeGridCreator) Convert(v *models.Variable, ctx *Context) (*models.Variable, error) {
	if ctx.Interval.IsZero() {
		return nil, fmt.Errorf("create_time_grid requires a processing interval for variable %s", ctx.VariableName)
	}

	begin := models.TimeToEpoch(ctx.Interval.Begin)
	end := models.TimeToEpoch(ctx.Interval.End)

	var values []float64
	for t := begin; t < end; t += c.step {
		values = append(values, t)
	}

	out := models.NewVariable(ctx.VariableName, []string{models.TimeDim}, values)
	out.Attrs[models.AttrUnits] = "s"
	return out, nil
}
