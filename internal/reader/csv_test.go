package reader

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVReader(t *testing.T) {
	path := writeFile(t, "timestamp,temp_f,station\n2026-08-25 00:00:00,32.0,sgp\n2026-08-25 00:01:00,33.5,sgp\n")

	r, err := DefaultRegistry().Build("csv", nil)
	require.NoError(t, err)

	datasets, err := r.Read(path)
	require.NoError(t, err)
	require.Len(t, datasets, 1)

	ds := datasets[path]
	require.NotNil(t, ds)
	assert.Equal(t, 2, ds.Dims["time"])

	ts := ds.Var("timestamp")
	require.NotNil(t, ts)
	assert.Equal(t, []string{"2026-08-25 00:00:00", "2026-08-25 00:01:00"}, ts.Raw)
	assert.Nil(t, ts.Values)

	temp := ds.Var("temp_f")
	require.NotNil(t, temp)
	assert.Equal(t, []float64{32.0, 33.5}, temp.Values)
	assert.Nil(t, temp.Raw)

	// Mixed-content columns stay raw
	station := ds.Var("station")
	require.NotNil(t, station)
	assert.NotNil(t, station.Raw)
}

func TestCSVReader_EmptyCellsAreMissing(t *testing.T) {
	path := writeFile(t, "a,b\n1,\n2,3\n")

	r, err := DefaultRegistry().Build("csv", nil)
	require.NoError(t, err)

	datasets, err := r.Read(path)
	require.NoError(t, err)

	b := datasets[path].Var("b")
	require.NotNil(t, b)
	assert.True(t, math.IsNaN(b.Values[0]))
	assert.Equal(t, 3.0, b.Values[1])
}

func TestCSVReader_CustomDelimiterAndComments(t *testing.T) {
	path := writeFile(t, "# generated by logger\na;b\n1;2\n")

	r, err := DefaultRegistry().Build("csv", map[string]interface{}{
		"delimiter": ";",
		"comment":   "#",
	})
	require.NoError(t, err)

	datasets, err := r.Read(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, datasets[path].Var("a").Values)
}

func TestCSVReader_MissingFile(t *testing.T) {
	r, err := DefaultRegistry().Build("csv", nil)
	require.NoError(t, err)

	_, err = r.Read(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestRegistry_UnknownReader(t *testing.T) {
	_, err := DefaultRegistry().Build("parquet", nil)
	assert.Error(t, err)
}
