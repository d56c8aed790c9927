package converters

import (
	"datastream-pipeline/internal/models"
)

// unitParams are the typed parameters of the "units" converter
type unitParams struct {
	// InputUnits overrides the source variable's units attribute
	InputUnits string `yaml:"input_units"`
}

// unitConverter converts sample values to the output schema's declared units
type unitConverter struct {
	params unitParams
}

// newUnitConverter is the registry factory for "units"
func newUnitConverter(params map[string]interface{}) (Converter, error) {
	var p unitParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return &unitConverter{params: p}, nil
}

// Convert converts values from the input units to the target units declared
// in the output schema. Returns nil when there is nothing to convert: no
// target units, no input units, or the two already agree.
func (c *unitConverter) Convert(v *models.Variable, ctx *Context) (*models.Variable, error) {
	if ctx.Target == nil || ctx.Target.Units == "" {
		return nil, nil
	}

	from := c.params.InputUnits
	if from == "" {
		from = v.Attrs.Units()
	}
	to := ctx.Target.Units
	if from == "" || from == to {
		return nil, nil
	}

	converted, err := ctx.Units.Convert(v.Values, from, to)
	if err != nil {
		return nil, &UnitError{Variable: ctx.VariableName, From: from, To: to, Err: err}
	}

	out := v.Copy()
	out.Values = converted
	out.Attrs[models.AttrUnits] = to
	return out, nil
}
