package reader

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"datastream-pipeline/internal/models"
)

// csvParams are the typed parameters of the "csv" reader
type csvParams struct {
	Delimiter string
	Comment   string
}

// CSVReader loads delimited text files. Every column becomes one variable
// over the time dimension; a column parses as numeric only when every
// non-empty cell does.
type CSVReader struct {
	delimiter rune
	comment   rune
}

// newCSVReader is the registry factory for "csv"
func newCSVReader(params map[string]interface{}) (Reader, error) {
	p := csvParams{Delimiter: ","}
	if raw, ok := params["delimiter"].(string); ok && raw != "" {
		p.Delimiter = raw
	}
	if raw, ok := params["comment"].(string); ok {
		p.Comment = raw
	}
	if len([]rune(p.Delimiter)) != 1 {
		return nil, fmt.Errorf("csv delimiter must be a single character, got %q", p.Delimiter)
	}

	r := &CSVReader{delimiter: []rune(p.Delimiter)[0]}
	if p.Comment != "" {
		if len([]rune(p.Comment)) != 1 {
			return nil, fmt.Errorf("csv comment marker must be a single character, got %q", p.Comment)
		}
		r.comment = []rune(p.Comment)[0]
	}
	return r, nil
}

// Read parses one file into a single raw dataset keyed by the input key
func (r *CSVReader) Read(key string) (map[string]*models.Dataset, error) {
	f, err := os.Open(key)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comma = r.delimiter
	cr.Comment = r.comment
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("input file %s is empty", key)
	}

	header := records[0]
	rows := records[1:]

	ds := models.NewDataset(key)
	ds.Dims[models.TimeDim] = len(rows)

	for col, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("column_%d", col)
		}
		ds.DataVars = append(ds.DataVars, buildColumn(name, col, rows))
	}
	return map[string]*models.Dataset{key: ds}, nil
}

// buildColumn assembles one variable from a column of cells
func buildColumn(name string, col int, rows [][]string) *models.Variable {
	cells := make([]string, len(rows))
	numeric := true
	for i, row := range rows {
		if col < len(row) {
			cells[i] = strings.TrimSpace(row[col])
		}
		if cells[i] == "" {
			continue
		}
		if _, err := strconv.ParseFloat(cells[i], 64); err != nil {
			numeric = false
		}
	}

	v := &models.Variable{
		Name:  name,
		Dims:  []string{models.TimeDim},
		Attrs: make(models.Attributes),
	}
	if !numeric {
		v.Raw = cells
		return v
	}

	v.Values = make([]float64, len(cells))
	for i, cell := range cells {
		if cell == "" {
			v.Values[i] = math.NaN()
			continue
		}
		// Parse error impossible after the scan above
		v.Values[i], _ = strconv.ParseFloat(cell, 64)
	}
	return v
}
