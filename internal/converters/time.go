package converters

import (
	"fmt"
	"strings"
	"time"

	"datastream-pipeline/internal/models"
)

// strptimeTokens maps strptime directives to Go reference-time layouts
var strptimeTokens = map[string]string{
	"%Y": "2006",
	"%y": "06",
	"%m": "01",
	"%d": "02",
	"%e": "_2",
	"%j": "002",
	"%H": "15",
	"%I": "03",
	"%M": "04",
	"%S": "05",
	"%f": "000000",
	"%p": "PM",
	"%z": "-0700",
	"%Z": "MST",
	"%%": "%",
}

// translateFormat converts a strptime format string to a Go time layout
func translateFormat(format string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			b.WriteByte(format[i])
			continue
		}
		if i+1 >= len(format) {
			return "", fmt.Errorf("dangling %% at end of format %q", format)
		}
		token := format[i : i+2]
		layout, ok := strptimeTokens[token]
		if !ok {
			return "", fmt.Errorf("unsupported time directive %q in format %q", token, format)
		}
		b.WriteString(layout)
		i++
	}
	return b.String(), nil
}

// stringTimeParams are the typed parameters of the "string_time" converter
type stringTimeParams struct {
	Format   string `yaml:"format"`
	Timezone string `yaml:"timezone"`
}

// stringTimeConverter parses raw time strings into float epoch seconds
type stringTimeConverter struct {
	layout string
	format string
	loc    *time.Location
}

// newStringTimeConverter is the registry factory for "string_time"
func newStringTimeConverter(params map[string]interface{}) (Converter, error) {
	var p stringTimeParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Format == "" {
		return nil, fmt.Errorf("string_time requires a format parameter")
	}

	layout, err := translateFormat(p.Format)
	if err != nil {
		return nil, err
	}

	loc := time.UTC
	if p.Timezone != "" {
		loc, err = time.LoadLocation(p.Timezone)
		if err != nil {
			return nil, fmt.Errorf("failed to load timezone %q: %w", p.Timezone, err)
		}
	}

	return &stringTimeConverter{layout: layout, format: p.Format, loc: loc}, nil
}

// Convert parses every raw sample. Any unparseable sample is fatal for the
// enclosing retrieval of this variable.
func (c *stringTimeConverter) Convert(v *models.Variable, ctx *Context) (*models.Variable, error) {
	if v.Raw == nil {
		return nil, nil
	}

	out := v.Copy()
	out.Values = make([]float64, len(v.Raw))
	for i, raw := range v.Raw {
		parsed, err := time.ParseInLocation(c.layout, strings.TrimSpace(raw), c.loc)
		if err != nil {
			return nil, &TimeParseError{Variable: ctx.VariableName, Value: raw, Format: c.format, Err: err}
		}
		out.Values[i] = models.TimeToEpoch(parsed)
	}
	out.Raw = nil
	out.Attrs[models.AttrUnits] = "s"
	return out, nil
}

// epochTimeParams are the typed parameters of the "epoch_time" converter
type epochTimeParams struct {
	// Resolution of the numeric input: "s", "ms" or "us"
	Resolution string `yaml:"resolution"`
}

// epochTimeConverter rescales numeric epoch values to float seconds
type epochTimeConverter struct {
	scale float64
}

// newEpochTimeConverter is the registry factory for "epoch_time"
func newEpochTimeConverter(params map[string]interface{}) (Converter, error) {
	var p epochTimeParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	scale := 1.0
	switch p.Resolution {
	case "", "s":
	case "ms":
		scale = 1e-3
	case "us":
		scale = 1e-6
	default:
		return nil, fmt.Errorf("unsupported epoch resolution %q", p.Resolution)
	}
	return &epochTimeConverter{scale: scale}, nil
}

// Convert rescales numeric epoch samples; inapplicable to raw-string input
func (c *epochTimeConverter) Convert(v *models.Variable, ctx *Context) (*models.Variable, error) {
	if v.Values == nil {
		return nil, nil
	}

	out := v.Copy()
	for i := range out.Values {
		out.Values[i] *= c.scale
	}
	out.Attrs[models.AttrUnits] = "s"
	return out, nil
}
