package transform

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tenSamples returns samples at t=0,100,...,900 with value equal to t
func tenSamples() (times, vals []float64) {
	for t := 0.0; t < 1000; t += 100 {
		times = append(times, t)
		vals = append(vals, t)
	}
	return times, vals
}

func defaultThresholds() Thresholds {
	return Thresholds{Indeterminate: 0.5, Bad: 0.9}
}

func TestBinAverage_CenterAlignment(t *testing.T) {
	times, vals := tenSamples()
	grid := []float64{300, 900}
	p := Params{
		Alignment:  AlignCenter,
		Width:      600 * time.Second,
		Thresholds: defaultThresholds(),
	}

	res := BinAverage(times, vals, nil, grid, p)

	// Window [0, 600) holds samples 0..500 with mean 250
	assert.InDelta(t, 250.0, res.Values[0], 1e-9)
	// Window [600, 1200) holds samples 600..900 with mean 750
	assert.InDelta(t, 750.0, res.Values[1], 1e-9)
	assert.Equal(t, 0, res.Starved)
}

func TestBinAverage_Alignments(t *testing.T) {
	times, vals := tenSamples()
	grid := []float64{300}

	tests := []struct {
		name      string
		alignment Alignment
		want      float64 // window -> samples -> mean
	}{
		{"LEFT", AlignLeft, 550},     // [300, 900) -> 300..800
		{"CENTER", AlignCenter, 250}, // [0, 600) -> 0..500
		{"RIGHT", AlignRight, 100},   // [-300, 300) -> 0..200
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Params{Alignment: tt.alignment, Width: 600 * time.Second, Thresholds: defaultThresholds()}
			res := BinAverage(times, vals, nil, grid, p)
			assert.InDelta(t, tt.want, res.Values[0], 1e-9)
		})
	}
}

func TestBinAverage_ExcludesFlaggedSamples(t *testing.T) {
	times, vals := tenSamples()
	// Flag 4 of the 6 samples in window [0, 600)
	bad := make([]bool, len(times))
	bad[0], bad[1], bad[2], bad[3] = true, true, true, true

	p := Params{Alignment: AlignCenter, Width: 600 * time.Second, Thresholds: defaultThresholds()}
	res := BinAverage(times, vals, bad, []float64{300}, p)

	// Only samples 400 and 500 contribute
	assert.InDelta(t, 450.0, res.Values[0], 1e-9)
	assert.InDelta(t, 4.0/6.0, res.ExcludedFraction[0], 1e-9)
	assert.Equal(t, 4, res.Excluded)

	// 0.666 >= 0.5 escalates to indeterminate, below 0.9 stays short of bad
	assert.Equal(t, AssessIndeterminate, p.Thresholds.Assess(res.ExcludedFraction[0]))
}

func TestBinAverage_StarvedPoint(t *testing.T) {
	times, vals := tenSamples()
	p := Params{Alignment: AlignCenter, Width: 600 * time.Second, Thresholds: defaultThresholds()}

	res := BinAverage(times, vals, nil, []float64{5000}, p)

	require.Len(t, res.Values, 1)
	assert.True(t, math.IsNaN(res.Values[0]))
	assert.Equal(t, 1, res.Starved)
	assert.Equal(t, 0.0, res.ExcludedFraction[0])
}

func TestBinAverage_AllFlaggedYieldsMissing(t *testing.T) {
	times, vals := tenSamples()
	bad := make([]bool, len(times))
	for i := range bad {
		bad[i] = true
	}
	p := Params{Alignment: AlignCenter, Width: 600 * time.Second, Thresholds: defaultThresholds()}

	res := BinAverage(times, vals, bad, []float64{300}, p)

	assert.True(t, math.IsNaN(res.Values[0]))
	assert.InDelta(t, 1.0, res.ExcludedFraction[0], 1e-9)
	assert.Equal(t, AssessBad, p.Thresholds.Assess(res.ExcludedFraction[0]))
}

func TestBinAverage_WindowBoundaryHalfOpen(t *testing.T) {
	times := []float64{0, 600}
	vals := []float64{1, 100}
	p := Params{Alignment: AlignCenter, Width: 600 * time.Second, Thresholds: defaultThresholds()}

	// Window [0, 600): the sample at exactly 600 is outside
	res := BinAverage(times, vals, nil, []float64{300}, p)
	assert.InDelta(t, 1.0, res.Values[0], 1e-9)
}

func TestNearestNeighbor(t *testing.T) {
	times := []float64{0, 95, 210}
	vals := []float64{10, 20, 30}
	p := Params{Range: 50 * time.Second, Width: 100 * time.Second, Thresholds: defaultThresholds()}

	res := NearestNeighbor(times, vals, nil, []float64{100, 400}, p)

	// 95 is within range of 100
	assert.InDelta(t, 20.0, res.Values[0], 1e-9)
	// Nothing within 50s of 400
	assert.True(t, math.IsNaN(res.Values[1]))
	assert.Equal(t, 1, res.Starved)
}

func TestNearestNeighbor_SkipsFlagged(t *testing.T) {
	times := []float64{90, 120}
	vals := []float64{1, 2}
	bad := []bool{true, false}
	p := Params{Range: 50 * time.Second, Width: 100 * time.Second, Thresholds: defaultThresholds()}

	res := NearestNeighbor(times, vals, bad, []float64{100}, p)

	// The nearer sample is flagged; the next nearest wins
	assert.InDelta(t, 2.0, res.Values[0], 1e-9)
	assert.InDelta(t, 0.5, res.ExcludedFraction[0], 1e-9)
}

func TestInterpolate(t *testing.T) {
	times := []float64{0, 100}
	vals := []float64{0, 10}
	p := Params{Range: 200 * time.Second, Width: 100 * time.Second, Thresholds: defaultThresholds()}

	res := Interpolate(times, vals, nil, []float64{25, 50, 100}, p)

	assert.InDelta(t, 2.5, res.Values[0], 1e-9)
	assert.InDelta(t, 5.0, res.Values[1], 1e-9)
	// Exact hit takes the sample value
	assert.InDelta(t, 10.0, res.Values[2], 1e-9)
}

func TestInterpolate_MissingBracket(t *testing.T) {
	times := []float64{0, 100}
	vals := []float64{0, 10}
	p := Params{Range: 50 * time.Second, Width: 100 * time.Second, Thresholds: defaultThresholds()}

	// 200 has a sample before (100) but none after within range
	res := Interpolate(times, vals, nil, []float64{200}, p)
	assert.True(t, math.IsNaN(res.Values[0]))
	assert.Equal(t, 1, res.Starved)
}

func TestInterpolate_FlaggedBracketExcluded(t *testing.T) {
	times := []float64{0, 50, 100}
	vals := []float64{0, 999, 10}
	bad := []bool{false, true, false}
	p := Params{Range: 200 * time.Second, Width: 100 * time.Second, Thresholds: defaultThresholds()}

	res := Interpolate(times, vals, bad, []float64{50}, p)

	// The flagged sample at 50 must not contribute; brackets are 0 and 100
	assert.InDelta(t, 5.0, res.Values[0], 1e-9)
	assert.InDelta(t, 1.0/3.0, res.ExcludedFraction[0], 1e-9)
}

func TestCollect_IgnoresNaNSamples(t *testing.T) {
	times := []float64{0, 100, 200}
	vals := []float64{1, math.NaN(), 3}
	p := Params{Alignment: AlignCenter, Width: 600 * time.Second, Thresholds: defaultThresholds()}

	res := BinAverage(times, vals, nil, []float64{100}, p)
	assert.InDelta(t, 2.0, res.Values[0], 1e-9)
}

func TestThresholds_InclusiveBoundary(t *testing.T) {
	th := Thresholds{Indeterminate: 0.5, Bad: 0.9}

	assert.Equal(t, AssessGood, th.Assess(0.49))
	assert.Equal(t, AssessIndeterminate, th.Assess(0.5))
	assert.Equal(t, AssessIndeterminate, th.Assess(0.89))
	assert.Equal(t, AssessBad, th.Assess(0.9))
	assert.Equal(t, AssessBad, th.Assess(1.0))
}

func TestParseAlignment(t *testing.T) {
	for _, s := range []string{"", "CENTER", "LEFT", "RIGHT"} {
		_, err := ParseAlignment(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseAlignment("MIDDLE")
	assert.Error(t, err)
}

func TestParams_DefaultWidthFromGridSpacing(t *testing.T) {
	times, vals := tenSamples()
	grid := []float64{300, 900}

	// No width configured: spacing (600s) is used
	p := Params{Alignment: AlignCenter, Thresholds: defaultThresholds()}
	res := BinAverage(times, vals, nil, grid, p)
	assert.InDelta(t, 250.0, res.Values[0], 1e-9)
}
