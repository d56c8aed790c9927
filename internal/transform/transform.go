// Package transform implements windowed regridding: aggregating
// irregularly-sampled source data onto a regular target grid using
// alignment/width/range semantics, excluding samples already flagged bad and
// reporting the excluded fraction per output point.
package transform

import (
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"datastream-pipeline/internal/config"
)

// Alignment places an output point's aggregation window relative to its
// timestamp.
type Alignment int

const (
	AlignCenter Alignment = iota
	AlignLeft
	AlignRight
)

// ParseAlignment maps a config string to an Alignment, defaulting to CENTER
func ParseAlignment(s string) (Alignment, error) {
	switch s {
	case "", "CENTER":
		return AlignCenter, nil
	case "LEFT":
		return AlignLeft, nil
	case "RIGHT":
		return AlignRight, nil
	default:
		return AlignCenter, fmt.Errorf("unknown alignment %q", s)
	}
}

// String returns the configuration spelling of the alignment
func (a Alignment) String() string {
	switch a {
	case AlignLeft:
		return "LEFT"
	case AlignRight:
		return "RIGHT"
	default:
		return "CENTER"
	}
}

// Thresholds escalate a point's assessment by excluded fraction. The
// boundary is inclusive: fraction >= Bad is bad, else fraction >=
// Indeterminate is indeterminate.
type Thresholds struct {
	Indeterminate float64
	Bad           float64
}

// Assessment labels for transformed points
const (
	AssessGood          = "good"
	AssessIndeterminate = "indeterminate"
	AssessBad           = "bad"
)

// Assess returns the assessment for an excluded fraction
func (t Thresholds) Assess(fraction float64) string {
	switch {
	case fraction >= t.Bad:
		return AssessBad
	case fraction >= t.Indeterminate:
		return AssessIndeterminate
	default:
		return AssessGood
	}
}

// Params holds the per-dimension regridding parameters
type Params struct {
	Alignment  Alignment
	Width      time.Duration
	Range      time.Duration
	Thresholds Thresholds
}

// ParamsFromConfig builds typed parameters from a transform config block
func ParamsFromConfig(cfg config.TransformConfig) (Params, error) {
	align, err := ParseAlignment(cfg.Alignment)
	if err != nil {
		return Params{}, err
	}
	return Params{
		Alignment: align,
		Width:     cfg.Width.Std(),
		Range:     cfg.Range.Std(),
		Thresholds: Thresholds{
			Indeterminate: cfg.Thresholds.IndeterminateOrDefault(),
			Bad:           cfg.Thresholds.BadOrDefault(),
		},
	}, nil
}

// withDefaults fills Width from the grid spacing and Range from Width
func (p Params) withDefaults(grid []float64) Params {
	if p.Width == 0 && len(grid) >= 2 {
		p.Width = time.Duration((grid[1] - grid[0]) * float64(time.Second))
	}
	if p.Range == 0 {
		p.Range = p.Width
	}
	return p
}

// window returns the [lo, hi) aggregation bounds for target point t
func (p Params) window(t float64) (lo, hi float64) {
	w := p.Width.Seconds()
	switch p.Alignment {
	case AlignLeft:
		return t, t + w
	case AlignRight:
		return t - w, t
	default:
		return t - w/2, t + w/2
	}
}

// Result is the output of regridding one variable onto one grid
type Result struct {
	// Values holds one aggregate per grid point; NaN marks a starved point
	Values []float64

	// ExcludedFraction is the per-point fraction of candidate samples
	// excluded because they were flagged bad
	ExcludedFraction []float64

	// Starved counts points with no usable source samples
	Starved int

	// Excluded counts flagged samples dropped across all points
	Excluded int
}

// sample pairs a source coordinate value with its payload
type point struct {
	t   float64
	v   float64
	bad bool
}

// collect builds the usable source sample list, treating NaN payloads and
// NaN coordinates as absent. bad may be nil when the source carries no
// quality flags.
func collect(srcTimes, srcVals []float64, bad []bool) []point {
	pts := make([]point, 0, len(srcTimes))
	for i := range srcTimes {
		if math.IsNaN(srcTimes[i]) || math.IsNaN(srcVals[i]) {
			continue
		}
		p := point{t: srcTimes[i], v: srcVals[i]}
		if bad != nil && bad[i] {
			p.bad = true
		}
		pts = append(pts, p)
	}
	return pts
}

// BinAverage aggregates the mean of all source samples falling in each grid
// point's window. Flagged samples are excluded from the mean but counted in
// the excluded fraction.
func BinAverage(srcTimes, srcVals []float64, bad []bool, grid []float64, p Params) Result {
	p = p.withDefaults(grid)
	pts := collect(srcTimes, srcVals, bad)
	res := newResult(len(grid))

	for gi, t := range grid {
		lo, hi := p.window(t)

		var good []float64
		candidates, excluded := 0, 0
		for _, pt := range pts {
			if pt.t < lo || pt.t >= hi {
				continue
			}
			candidates++
			if pt.bad {
				excluded++
				continue
			}
			good = append(good, pt.v)
		}

		res.record(gi, candidates, excluded)
		if len(good) == 0 {
			res.Values[gi] = math.NaN()
			res.Starved++
			continue
		}
		mean, err := stats.Mean(good)
		if err != nil {
			res.Values[gi] = math.NaN()
			res.Starved++
			continue
		}
		res.Values[gi] = mean
	}
	return res
}

// NearestNeighbor selects the single nearest source sample within Range of
// each grid point. Flagged samples are not eligible.
func NearestNeighbor(srcTimes, srcVals []float64, bad []bool, grid []float64, p Params) Result {
	p = p.withDefaults(grid)
	rng := p.Range.Seconds()
	pts := collect(srcTimes, srcVals, bad)
	res := newResult(len(grid))

	for gi, t := range grid {
		bestDist := math.Inf(1)
		bestVal := math.NaN()
		candidates, excluded := 0, 0

		for _, pt := range pts {
			dist := math.Abs(pt.t - t)
			if dist > rng {
				continue
			}
			candidates++
			if pt.bad {
				excluded++
				continue
			}
			if dist < bestDist {
				bestDist = dist
				bestVal = pt.v
			}
		}

		res.record(gi, candidates, excluded)
		res.Values[gi] = bestVal
		if math.IsNaN(bestVal) {
			res.Starved++
		}
	}
	return res
}

// Interpolate linearly interpolates between the two nearest bracketing
// source samples, each within Range of the grid point. A grid point landing
// exactly on a source sample takes that sample's value.
func Interpolate(srcTimes, srcVals []float64, bad []bool, grid []float64, p Params) Result {
	p = p.withDefaults(grid)
	rng := p.Range.Seconds()
	pts := collect(srcTimes, srcVals, bad)
	res := newResult(len(grid))

	for gi, t := range grid {
		var before, after *point
		candidates, excluded := 0, 0

		for i := range pts {
			pt := &pts[i]
			dist := math.Abs(pt.t - t)
			if dist > rng {
				continue
			}
			candidates++
			if pt.bad {
				excluded++
				continue
			}
			if pt.t <= t {
				if before == nil || pt.t > before.t {
					before = pt
				}
			}
			if pt.t >= t {
				if after == nil || pt.t < after.t {
					after = pt
				}
			}
		}

		res.record(gi, candidates, excluded)
		switch {
		case before == nil || after == nil:
			res.Values[gi] = math.NaN()
			res.Starved++
		case before.t == after.t:
			res.Values[gi] = before.v
		default:
			frac := (t - before.t) / (after.t - before.t)
			res.Values[gi] = before.v + frac*(after.v-before.v)
		}
	}
	return res
}

// newResult allocates a result for n grid points
func newResult(n int) Result {
	return Result{
		Values:           make([]float64, n),
		ExcludedFraction: make([]float64, n),
	}
}

// record stores the excluded fraction for one point and tallies exclusions
func (r *Result) record(gi, candidates, excluded int) {
	if candidates > 0 {
		r.ExcludedFraction[gi] = float64(excluded) / float64(candidates)
	}
	r.Excluded += excluded
}
