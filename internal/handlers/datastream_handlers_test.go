package handlers

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datastream-pipeline/internal/models"
)

func TestParseTime(t *testing.T) {
	got, err := parseTime("2026-08-25T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC), got.UTC())

	got, err = parseTime("1756080000")
	require.NoError(t, err)
	assert.Equal(t, int64(1756080000), got.Unix())

	_, err = parseTime("yesterday")
	assert.Error(t, err)
}

func TestVarFilter(t *testing.T) {
	assert.Nil(t, varFilter(""))

	f := varFilter("temperature, rh")
	assert.True(t, f["temperature"])
	assert.True(t, f["rh"])
	assert.False(t, f["wspd"])
}

func TestToVariableResponse_MissingBecomesNull(t *testing.T) {
	v := models.NewVariable("temperature", []string{"time"}, []float64{20.5, math.NaN()})
	v.Attrs[models.AttrUnits] = "degC"

	out := toVariableResponse(v)
	assert.Equal(t, "degC", out.Units)
	require.Len(t, out.Values, 2)
	require.NotNil(t, out.Values[0])
	assert.Equal(t, 20.5, *out.Values[0])
	assert.Nil(t, out.Values[1])
}

func TestToVariableResponse_Flags(t *testing.T) {
	qc := &models.Variable{
		Name:  "qc_temperature",
		Dims:  []string{"time"},
		Attrs: make(models.Attributes),
		Ints:  []int64{0, 3},
	}

	out := toVariableResponse(qc)
	assert.Nil(t, out.Values)
	assert.Equal(t, []int64{0, 3}, out.Flags)
}
