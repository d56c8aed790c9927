package converters

import (
	"fmt"

	"datastream-pipeline/internal/models"
	"datastream-pipeline/internal/transform"
)

// Algorithm identifies a windowed regridding strategy
type Algorithm string

const (
	AlgorithmBinAverage      Algorithm = "bin_average"
	AlgorithmNearestNeighbor Algorithm = "nearest_neighbor"
	AlgorithmInterpolate     Algorithm = "interpolate"
)

// IsTransformAlgorithm reports whether a converter key names one of the
// regridding algorithms.
func IsTransformAlgorithm(name string) bool {
	switch Algorithm(name) {
	case AlgorithmBinAverage, AlgorithmNearestNeighbor, AlgorithmInterpolate:
		return true
	}
	return false
}

// Attribute names the transform engine writes on its companion output
const (
	attrIndeterminateThreshold = "indeterminate_threshold"
	attrBadThreshold           = "bad_threshold"
	attrTransformAlgorithm     = "transform_algorithm"
)

// transformParams are the shared parameters of the regridding converters
type transformParams struct {
	// Dim is the coordinate to regrid along, defaulting to time
	Dim string `yaml:"dim"`
}

// transformConverter regrids one variable from the source coordinate onto
// the already-retrieved target coordinate, excluding samples flagged bad and
// emitting an excluded-fraction companion.
type transformConverter struct {
	algorithm Algorithm
	dim       string
}

// newTransformConverter returns the registry factory for one algorithm key
func newTransformConverter(algorithm Algorithm) Factory {
	return func(params map[string]interface{}) (Converter, error) {
		var p transformParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if p.Dim == "" {
			p.Dim = models.TimeDim
		}
		return &transformConverter{algorithm: algorithm, dim: p.Dim}, nil
	}
}

// Convert runs the configured algorithm for this variable along one
// dimension. The target coordinate must already be present in the retrieved
// dataset (coordinates are retrieved before data variables) and the source
// dataset must carry a parsed numeric coordinate.
func (c *transformConverter) Convert(v *models.Variable, ctx *Context) (*models.Variable, error) {
	if v.Values == nil {
		return nil, fmt.Errorf("%s requires numeric input for variable %s", c.algorithm, ctx.VariableName)
	}

	gridVar := ctx.Retrieved.Coord(c.dim)
	if gridVar == nil || gridVar.Values == nil {
		return nil, fmt.Errorf("%s for variable %s: coordinate %s not yet retrieved", c.algorithm, ctx.VariableName, c.dim)
	}
	srcCoord := ctx.Source.Coord(c.dim)
	if srcCoord == nil || srcCoord.Values == nil {
		return nil, fmt.Errorf("%s for variable %s: source dataset has no numeric coordinate %s", c.algorithm, ctx.VariableName, c.dim)
	}
	if len(srcCoord.Values) != len(v.Values) {
		return nil, fmt.Errorf("%s for variable %s: %d samples against %d coordinate values", c.algorithm, ctx.VariableName, len(v.Values), len(srcCoord.Values))
	}

	params, err := transform.ParamsFromConfig(ctx.Transform[c.dim])
	if err != nil {
		return nil, fmt.Errorf("%s for variable %s: %w", c.algorithm, ctx.VariableName, err)
	}

	bad := models.BadSampleMask(ctx.Source, v.Name)

	var res transform.Result
	switch c.algorithm {
	case AlgorithmBinAverage:
		res = transform.BinAverage(srcCoord.Values, v.Values, bad, gridVar.Values, params)
	case AlgorithmNearestNeighbor:
		res = transform.NearestNeighbor(srcCoord.Values, v.Values, bad, gridVar.Values, params)
	case AlgorithmInterpolate:
		res = transform.Interpolate(srcCoord.Values, v.Values, bad, gridVar.Values, params)
	default:
		return nil, fmt.Errorf("unknown transform algorithm %s", c.algorithm)
	}

	out := models.NewVariable(ctx.VariableName, []string{c.dim}, res.Values)
	out.Attrs = v.Attrs.Copy()

	ctx.Companions = append(ctx.Companions, c.companion(ctx.VariableName, res, params))
	return out, nil
}

// companion builds the excluded-fraction variable recording, per output
// point, how much of the candidate input was dropped for quality.
func (c *transformConverter) companion(name string, res transform.Result, params transform.Params) *models.Variable {
	comp := models.NewVariable(models.ExcludedFractionName(name), []string{c.dim}, res.ExcludedFraction)
	comp.Attrs[models.AttrLongName] = fmt.Sprintf("Fraction of %s input samples excluded for quality", name)
	comp.Attrs[models.AttrUnits] = "1"
	comp.Attrs[attrTransformAlgorithm] = string(c.algorithm)
	comp.Attrs[attrIndeterminateThreshold] = params.Thresholds.Indeterminate
	comp.Attrs[attrBadThreshold] = params.Thresholds.Bad
	return comp
}
