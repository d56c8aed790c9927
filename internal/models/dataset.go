package models

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// TimeDim is the conventional unlimited dimension name
const TimeDim = "time"

// Dataset is a named collection of dimensions, coordinate variables and data
// variables. Coordinates and data variables keep declaration order; ordering
// is load-bearing for quality-flag bit assignment downstream.
type Dataset struct {
	Name         string
	Dims         map[string]int
	UnlimitedDim string
	Coords       []*Variable
	DataVars     []*Variable
	Attrs        Attributes
}

// NewDataset creates an empty dataset with the time dimension unlimited
func NewDataset(name string) *Dataset {
	return &Dataset{
		Name:         name,
		Dims:         make(map[string]int),
		UnlimitedDim: TimeDim,
		Attrs:        make(Attributes),
	}
}

// AddCoord registers a coordinate variable. The coordinate's name must be a
// declared dimension; its length defines the dimension length.
func (d *Dataset) AddCoord(v *Variable) error {
	if d.Var(v.Name) != nil {
		return fmt.Errorf("variable %s already exists in dataset %s", v.Name, d.Name)
	}
	d.Dims[v.Name] = v.Len()
	d.Coords = append(d.Coords, v)
	return nil
}

// AddDataVar registers a data variable after checking its shape
func (d *Dataset) AddDataVar(v *Variable) error {
	if d.Var(v.Name) != nil {
		return fmt.Errorf("variable %s already exists in dataset %s", v.Name, d.Name)
	}
	if err := v.checkShape(d.Dims); err != nil {
		return err
	}
	d.DataVars = append(d.DataVars, v)
	return nil
}

// Coord returns the named coordinate variable, or nil
func (d *Dataset) Coord(name string) *Variable {
	for _, c := range d.Coords {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// DataVar returns the named data variable, or nil
func (d *Dataset) DataVar(name string) *Variable {
	for _, v := range d.DataVars {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// Var returns the named variable, coordinate or data, or nil
func (d *Dataset) Var(name string) *Variable {
	if c := d.Coord(name); c != nil {
		return c
	}
	return d.DataVar(name)
}

// VarNames returns all variable names, coordinates first, in declaration order
func (d *Dataset) VarNames() []string {
	names := make([]string, 0, len(d.Coords)+len(d.DataVars))
	for _, c := range d.Coords {
		names = append(names, c.Name)
	}
	for _, v := range d.DataVars {
		names = append(names, v.Name)
	}
	return names
}

// Validate checks the dataset invariants: coordinate names equal dimension
// names, variable names are unique, and every shape matches the declared
// dimension lengths.
func (d *Dataset) Validate() error {
	seen := make(map[string]bool)
	for _, c := range d.Coords {
		if seen[c.Name] {
			return fmt.Errorf("duplicate variable %s in dataset %s", c.Name, d.Name)
		}
		seen[c.Name] = true
		if _, ok := d.Dims[c.Name]; !ok {
			return fmt.Errorf("coordinate %s is not a declared dimension of dataset %s", c.Name, d.Name)
		}
		if c.Len() != d.Dims[c.Name] {
			return fmt.Errorf("coordinate %s has %d samples, dimension declares %d", c.Name, c.Len(), d.Dims[c.Name])
		}
	}
	for _, v := range d.DataVars {
		if seen[v.Name] {
			return fmt.Errorf("duplicate variable %s in dataset %s", v.Name, d.Name)
		}
		seen[v.Name] = true
		if err := v.checkShape(d.Dims); err != nil {
			return err
		}
	}
	return nil
}

// TimeInterval derives the [begin, end) interval covered by the time
// coordinate. Used by ingest runs, which take their interval from content.
func (d *Dataset) TimeInterval() (Interval, error) {
	tc := d.Coord(TimeDim)
	if tc == nil || tc.Len() == 0 {
		return Interval{}, fmt.Errorf("dataset %s has no populated time coordinate", d.Name)
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range tc.Values {
		if math.IsNaN(v) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if math.IsInf(lo, 1) {
		return Interval{}, fmt.Errorf("time coordinate of dataset %s holds no valid samples", d.Name)
	}
	return Interval{Begin: EpochToTime(lo), End: EpochToTime(hi).Add(time.Millisecond)}, nil
}

// ConcatTime appends another dataset's samples along the time dimension.
// Both datasets must declare the same variables; samples are re-sorted by
// time so stored fragments can merge in any order.
func (d *Dataset) ConcatTime(other *Dataset) error {
	for _, name := range d.VarNames() {
		dst := d.Var(name)
		src := other.Var(name)
		if src == nil {
			return fmt.Errorf("dataset %s is missing variable %s required for concatenation", other.Name, name)
		}
		dst.Values = append(dst.Values, src.Values...)
		dst.Ints = append(dst.Ints, src.Ints...)
		dst.Raw = append(dst.Raw, src.Raw...)
	}
	d.Dims[TimeDim] += other.Dims[TimeDim]
	d.sortByTime()
	return nil
}

// sortByTime reorders every time-dimensioned variable by the time coordinate
func (d *Dataset) sortByTime() {
	tc := d.Coord(TimeDim)
	if tc == nil {
		return
	}
	n := tc.Len()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return tc.Values[order[a]] < tc.Values[order[b]]
	})
	reorder := func(v *Variable) {
		if len(v.Dims) != 1 || v.Dims[0] != TimeDim {
			return
		}
		if v.Values != nil {
			out := make([]float64, n)
			for i, j := range order {
				out[i] = v.Values[j]
			}
			v.Values = out
		}
		if v.Ints != nil {
			out := make([]int64, n)
			for i, j := range order {
				out[i] = v.Ints[j]
			}
			v.Ints = out
		}
		if v.Raw != nil {
			out := make([]string, n)
			for i, j := range order {
				out[i] = v.Raw[j]
			}
			v.Raw = out
		}
	}
	for _, c := range d.Coords {
		if c != tc {
			reorder(c)
		}
	}
	for _, v := range d.DataVars {
		reorder(v)
	}
	reorder(tc)
}
