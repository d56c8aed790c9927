package repository

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datastream-pipeline/internal/models"
)

func TestSplitDatastreamID(t *testing.T) {
	tests := []struct {
		id                    string
		location, name, level string
	}{
		{"sgp.met.b1", "sgp", "met", "b1"},
		{"nsa.met.qc.c1", "nsa", "met.qc", "c1"},
		{"met", "", "met", ""},
		{"sgp.met", "", "sgp.met", ""},
	}
	for _, tt := range tests {
		location, name, level := splitDatastreamID(tt.id)
		assert.Equal(t, tt.location, location, tt.id)
		assert.Equal(t, tt.name, name, tt.id)
		assert.Equal(t, tt.level, level, tt.id)
	}
}

func TestVariableStorageRoundTrip(t *testing.T) {
	const fill = -9999.0

	v := models.NewVariable("temperature", []string{"time"}, []float64{20.5, math.NaN(), 22.0})
	v.Attrs[models.AttrUnits] = "degC"

	rec, err := encodeVariable(uuid.New(), v, false, 3, fill)
	require.NoError(t, err)
	// NaN must not reach the JSON payload
	assert.NotContains(t, string(rec.FloatValues), "NaN")
	assert.Contains(t, string(rec.FloatValues), "-9999")

	out, err := decodeVariable(rec, fill)
	require.NoError(t, err)
	assert.Equal(t, "temperature", out.Name)
	assert.Equal(t, []string{"time"}, out.Dims)
	assert.Equal(t, 20.5, out.Values[0])
	assert.True(t, math.IsNaN(out.Values[1]))
	assert.Equal(t, "degC", out.Attrs.Units())
}

func TestVariableStorageRoundTrip_FlagsAndRaw(t *testing.T) {
	qc := &models.Variable{
		Name:  "qc_temperature",
		Dims:  []string{"time"},
		Attrs: make(models.Attributes),
		Ints:  []int64{0, 3, 1},
	}

	rec, err := encodeVariable(uuid.New(), qc, false, 0, -9999)
	require.NoError(t, err)
	assert.Nil(t, rec.FloatValues)

	out, err := decodeVariable(rec, -9999)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 3, 1}, out.Ints)
}
