package models

import (
	"math"
	"testing"
	"time"
)

func TestDataset_AddAndValidate(t *testing.T) {
	ds := NewDataset("test.sgp.a1")

	timeCoord := NewVariable(TimeDim, []string{TimeDim}, []float64{0, 60, 120})
	if err := ds.AddCoord(timeCoord); err != nil {
		t.Fatalf("AddCoord() error = %v", err)
	}

	if ds.Dims[TimeDim] != 3 {
		t.Errorf("Dims[time] = %d, want 3", ds.Dims[TimeDim])
	}

	temp := NewVariable("temperature", []string{TimeDim}, []float64{10, 11, 12})
	if err := ds.AddDataVar(temp); err != nil {
		t.Fatalf("AddDataVar() error = %v", err)
	}

	if err := ds.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	// Shape mismatch must be rejected
	bad := NewVariable("pressure", []string{TimeDim}, []float64{1000, 1001})
	if err := ds.AddDataVar(bad); err == nil {
		t.Error("AddDataVar() with mismatched shape should fail")
	}

	// Duplicate names must be rejected
	dup := NewVariable("temperature", []string{TimeDim}, []float64{1, 2, 3})
	if err := ds.AddDataVar(dup); err == nil {
		t.Error("AddDataVar() with duplicate name should fail")
	}
}

func TestVariable_MissingValues(t *testing.T) {
	v := NewVariable("x", []string{TimeDim}, []float64{1, 2, 3, 4})

	v.SetMissing(1)
	if !v.IsMissing(1) {
		t.Error("IsMissing(1) = false after SetMissing(1)")
	}
	if v.IsMissing(0) {
		t.Error("IsMissing(0) = true, want false")
	}
	if got := v.ValidCount(); got != 3 {
		t.Errorf("ValidCount() = %d, want 3", got)
	}
}

func TestVariable_Copy(t *testing.T) {
	v := NewVariable("x", []string{TimeDim}, []float64{1, 2})
	v.Attrs[AttrUnits] = "degC"

	cp := v.Copy()
	cp.Values[0] = 99
	cp.Attrs[AttrUnits] = "degF"

	if v.Values[0] != 1 {
		t.Errorf("copy aliases Values: original[0] = %v, want 1", v.Values[0])
	}
	if v.Attrs.Units() != "degC" {
		t.Errorf("copy aliases Attrs: original units = %q, want degC", v.Attrs.Units())
	}
}

func TestDataset_TimeInterval(t *testing.T) {
	ds := NewDataset("test")
	begin := time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)

	times := []float64{
		TimeToEpoch(begin),
		TimeToEpoch(begin.Add(10 * time.Minute)),
		TimeToEpoch(begin.Add(20 * time.Minute)),
	}
	if err := ds.AddCoord(NewVariable(TimeDim, []string{TimeDim}, times)); err != nil {
		t.Fatalf("AddCoord() error = %v", err)
	}

	iv, err := ds.TimeInterval()
	if err != nil {
		t.Fatalf("TimeInterval() error = %v", err)
	}
	if !iv.Begin.Equal(begin) {
		t.Errorf("Begin = %v, want %v", iv.Begin, begin)
	}
	if !iv.Contains(begin.Add(20 * time.Minute)) {
		t.Error("interval should contain the last sample")
	}
}

func TestDataset_ConcatTime(t *testing.T) {
	build := func(times, vals []float64) *Dataset {
		ds := NewDataset("test")
		if err := ds.AddCoord(NewVariable(TimeDim, []string{TimeDim}, times)); err != nil {
			t.Fatalf("AddCoord() error = %v", err)
		}
		if err := ds.AddDataVar(NewVariable("x", []string{TimeDim}, vals)); err != nil {
			t.Fatalf("AddDataVar() error = %v", err)
		}
		return ds
	}

	// Later fragment concatenated first; merge must re-sort by time
	a := build([]float64{200, 300}, []float64{2, 3})
	b := build([]float64{0, 100}, []float64{0, 1})

	if err := a.ConcatTime(b); err != nil {
		t.Fatalf("ConcatTime() error = %v", err)
	}
	if a.Dims[TimeDim] != 4 {
		t.Errorf("Dims[time] = %d, want 4", a.Dims[TimeDim])
	}

	wantTimes := []float64{0, 100, 200, 300}
	wantVals := []float64{0, 1, 2, 3}
	for i := range wantTimes {
		if a.Coord(TimeDim).Values[i] != wantTimes[i] {
			t.Errorf("time[%d] = %v, want %v", i, a.Coord(TimeDim).Values[i], wantTimes[i])
		}
		if a.DataVar("x").Values[i] != wantVals[i] {
			t.Errorf("x[%d] = %v, want %v", i, a.DataVar("x").Values[i], wantVals[i])
		}
	}
}

func TestEpochRoundTrip(t *testing.T) {
	ts := time.Date(2023, 6, 1, 12, 30, 15, 250_000_000, time.UTC)
	sec := TimeToEpoch(ts)
	back := EpochToTime(sec)
	if !back.Equal(ts) {
		t.Errorf("EpochToTime(TimeToEpoch(%v)) = %v", ts, back)
	}
	if math.Abs(sec-float64(ts.Unix())-0.25) > 1e-9 {
		t.Errorf("fractional seconds lost: %v", sec)
	}
}
