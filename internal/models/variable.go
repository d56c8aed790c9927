package models

import (
	"fmt"
	"math"
)

// Standard attribute names shared across the pipeline
const (
	AttrUnits           = "units"
	AttrLongName        = "long_name"
	AttrStandardName    = "standard_name"
	AttrValidMin        = "valid_min"
	AttrValidMax        = "valid_max"
	AttrFillValue       = "_FillValue"
	AttrFlagMasks       = "flag_masks"
	AttrFlagAssessments = "flag_assessments"
	AttrFlagMeanings    = "flag_meanings"
)

// Attributes holds variable or dataset level metadata
type Attributes map[string]interface{}

// Copy returns a shallow copy of the attribute map
func (a Attributes) Copy() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Units returns the units attribute, or "" when unset
func (a Attributes) Units() string {
	if u, ok := a[AttrUnits].(string); ok {
		return u
	}
	return ""
}

// Variable represents one named array within a dataset.
// Numeric payloads live in Values (NaN marks a missing sample), bit-packed
// quality flags in Ints, and unparsed raw text (e.g. time strings before
// conversion) in Raw. Exactly one payload slice is populated at a time.
type Variable struct {
	Name   string
	Dims   []string
	Attrs  Attributes
	Values []float64
	Ints   []int64
	Raw    []string
}

// NewVariable creates a numeric variable over the given dimensions
func NewVariable(name string, dims []string, values []float64) *Variable {
	return &Variable{
		Name:   name,
		Dims:   append([]string(nil), dims...),
		Attrs:  make(Attributes),
		Values: values,
	}
}

// Len returns the number of samples in the populated payload
func (v *Variable) Len() int {
	switch {
	case v.Values != nil:
		return len(v.Values)
	case v.Ints != nil:
		return len(v.Ints)
	default:
		return len(v.Raw)
	}
}

// Copy returns a deep copy of the variable. Output datasets never alias
// input arrays, so every retrieved or transformed variable goes through here.
func (v *Variable) Copy() *Variable {
	out := &Variable{
		Name:  v.Name,
		Dims:  append([]string(nil), v.Dims...),
		Attrs: v.Attrs.Copy(),
	}
	if v.Values != nil {
		out.Values = append([]float64(nil), v.Values...)
	}
	if v.Ints != nil {
		out.Ints = append([]int64(nil), v.Ints...)
	}
	if v.Raw != nil {
		out.Raw = append([]string(nil), v.Raw...)
	}
	return out
}

// IsMissing reports whether sample i holds a missing value
func (v *Variable) IsMissing(i int) bool {
	if v.Values == nil {
		return false
	}
	return math.IsNaN(v.Values[i])
}

// SetMissing marks sample i as missing
func (v *Variable) SetMissing(i int) {
	if v.Values != nil {
		v.Values[i] = math.NaN()
	}
}

// ValidCount returns the number of non-missing samples
func (v *Variable) ValidCount() int {
	count := 0
	for i := range v.Values {
		if !math.IsNaN(v.Values[i]) {
			count++
		}
	}
	return count
}

// FillValue returns the variable's declared fill value, or the fallback
func (v *Variable) FillValue(fallback float64) float64 {
	switch fv := v.Attrs[AttrFillValue].(type) {
	case float64:
		return fv
	case int:
		return float64(fv)
	case int64:
		return float64(fv)
	}
	return fallback
}

// checkShape verifies the payload length against declared dimension lengths
func (v *Variable) checkShape(dims map[string]int) error {
	expected := 1
	for _, d := range v.Dims {
		length, ok := dims[d]
		if !ok {
			return fmt.Errorf("variable %s references undeclared dimension %s", v.Name, d)
		}
		expected *= length
	}
	if len(v.Dims) == 0 {
		expected = 1
	}
	if v.Len() != expected {
		return fmt.Errorf("variable %s has %d samples, dimensions declare %d", v.Name, v.Len(), expected)
	}
	return nil
}
