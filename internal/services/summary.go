package services

import (
	"context"
	"math"

	"github.com/montanaflynn/stats"

	"datastream-pipeline/internal/models"
	"datastream-pipeline/pkg/logging"
)

// variableSummary holds descriptive statistics for one output variable
type variableSummary struct {
	Valid   int
	Missing int
	Mean    float64
	Min     float64
	Max     float64
	StdDev  float64
}

// summarize computes per-variable statistics over valid samples
func summarize(v *models.Variable) variableSummary {
	s := variableSummary{Mean: math.NaN(), Min: math.NaN(), Max: math.NaN(), StdDev: math.NaN()}
	valid := make([]float64, 0, len(v.Values))
	for i := range v.Values {
		if v.IsMissing(i) {
			s.Missing++
			continue
		}
		valid = append(valid, v.Values[i])
	}
	s.Valid = len(valid)
	if s.Valid == 0 {
		return s
	}
	s.Mean, _ = stats.Mean(valid)
	s.Min, _ = stats.Min(valid)
	s.Max, _ = stats.Max(valid)
	s.StdDev, _ = stats.StandardDeviation(valid)
	return s
}

// logSummaries emits one log line of descriptive statistics per data
// variable, skipping flag companions.
func logSummaries(ctx context.Context, logger *logging.StructuredLogger, ds *models.Dataset) {
	for _, v := range ds.DataVars {
		if v.Values == nil || models.IsCompanionName(v.Name) {
			continue
		}
		s := summarize(v)
		logger.Info(ctx, "[SUMMARY] Variable statistics", logging.Fields{
			"variable": v.Name,
			"valid":    s.Valid,
			"missing":  s.Missing,
			"mean":     s.Mean,
			"min":      s.Min,
			"max":      s.Max,
			"stddev":   s.StdDev,
		})
	}
}
