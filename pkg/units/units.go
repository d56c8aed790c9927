// Package units provides the narrow unit-conversion boundary the pipeline
// core depends on. The default implementation covers the linear and affine
// conversions common in surface-observation datastreams; anything richer can
// be swapped in behind the Service interface.
package units

import (
	"fmt"
	"math"
)

// Service converts sample values between unit systems
type Service interface {
	// Convert converts values from one unit to another, returning a new slice
	Convert(values []float64, from, to string) ([]float64, error)

	// Commensurable reports whether two units share a dimension
	Commensurable(a, b string) bool
}

// ErrUnknownUnit is wrapped by conversion errors for unrecognized unit names
var ErrUnknownUnit = fmt.Errorf("unknown unit")

// ErrIncommensurable is wrapped when two units have different dimensions
var ErrIncommensurable = fmt.Errorf("units are not commensurable")

// factor expresses a unit as value_base = value*Scale + Offset
type factor struct {
	Dim    string
	Scale  float64
	Offset float64
}

// table maps unit spellings to base-unit factors. Base units per dimension:
// kelvin, meter, second, pascal, meter/second, fraction of one.
var table = map[string]factor{
	"K":       {Dim: "temperature", Scale: 1},
	"kelvin":  {Dim: "temperature", Scale: 1},
	"degC":    {Dim: "temperature", Scale: 1, Offset: 273.15},
	"celsius": {Dim: "temperature", Scale: 1, Offset: 273.15},
	"degF":    {Dim: "temperature", Scale: 5.0 / 9.0, Offset: 273.15 - 32.0*5.0/9.0},

	"m":  {Dim: "length", Scale: 1},
	"mm": {Dim: "length", Scale: 1e-3},
	"cm": {Dim: "length", Scale: 1e-2},
	"km": {Dim: "length", Scale: 1e3},
	"in": {Dim: "length", Scale: 0.0254},

	"s":       {Dim: "time", Scale: 1},
	"seconds": {Dim: "time", Scale: 1},
	"ms":      {Dim: "time", Scale: 1e-3},
	"min":     {Dim: "time", Scale: 60},
	"hour":    {Dim: "time", Scale: 3600},

	"Pa":  {Dim: "pressure", Scale: 1},
	"hPa": {Dim: "pressure", Scale: 100},
	"kPa": {Dim: "pressure", Scale: 1000},
	"mb":  {Dim: "pressure", Scale: 100},

	"m/s":  {Dim: "speed", Scale: 1},
	"km/h": {Dim: "speed", Scale: 1.0 / 3.6},
	"mph":  {Dim: "speed", Scale: 0.44704},
	"knot": {Dim: "speed", Scale: 0.514444},

	"1":       {Dim: "fraction", Scale: 1},
	"%":       {Dim: "fraction", Scale: 0.01},
	"percent": {Dim: "fraction", Scale: 0.01},
}

// tableService is the default Service backed by the static factor table
type tableService struct{}

// NewService returns the default unit-conversion service
func NewService() Service {
	return tableService{}
}

// Convert converts values from one unit to another. Missing samples (NaN)
// pass through unchanged.
func (tableService) Convert(values []float64, from, to string) ([]float64, error) {
	ff, ok := table[from]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUnit, from)
	}
	tf, ok := table[to]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUnit, to)
	}
	if ff.Dim != tf.Dim {
		return nil, fmt.Errorf("%w: %q (%s) -> %q (%s)", ErrIncommensurable, from, ff.Dim, to, tf.Dim)
	}

	out := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = v
			continue
		}
		base := v*ff.Scale + ff.Offset
		out[i] = (base - tf.Offset) / tf.Scale
	}
	return out, nil
}

// Commensurable reports whether both units are known and share a dimension
func (tableService) Commensurable(a, b string) bool {
	fa, ok := table[a]
	if !ok {
		return false
	}
	fb, ok := table[b]
	if !ok {
		return false
	}
	return fa.Dim == fb.Dim
}
