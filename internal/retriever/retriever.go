// Package retriever maps raw input variables onto the declared output schema.
// Each output variable is resolved by its ordered rules: a rule's pattern
// selects the first input dataset whose identifier matches, the rule's source
// names the raw variable to extract from it, and the rule's converter chain
// standardizes the extracted values. Coordinates are retrieved before data
// variables so regridding steps can see the target grid.
package retriever

import (
	"context"
	"fmt"
	"sort"

	"datastream-pipeline/internal/config"
	"datastream-pipeline/internal/converters"
	"datastream-pipeline/internal/models"
	"datastream-pipeline/pkg/logging"
	"datastream-pipeline/pkg/metrics"
	"datastream-pipeline/pkg/units"
)

// RetrievalError reports a failure to populate a mandatory output variable.
// Mandatory coordinates and non-optional data variables fail the interval.
type RetrievalError struct {
	Variable string
	Reason   string
	Err      error
}

// Error implements the error interface
func (e *RetrievalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("retrieval failed for variable %s: %s: %v", e.Variable, e.Reason, e.Err)
	}
	return fmt.Sprintf("retrieval failed for variable %s: %s", e.Variable, e.Reason)
}

// Unwrap allows errors.Is and errors.As to reach the cause
func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// Retriever holds a compiled retrieval plan for one pipeline
type Retriever struct {
	cfg     *config.PipelineConfig
	plan    plan
	units   units.Service
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// New compiles the pipeline's retrieval rules. For data variables on a
// gridded dimension whose chain declares no regridding step, a bin_average
// step is appended so every gridded output goes through the transform engine.
func New(cfg *config.PipelineConfig, registry *converters.Registry, unitSvc units.Service, logger *logging.StructuredLogger, collector *metrics.Collector) (*Retriever, error) {
	p, err := compilePlan(cfg.Retriever, registry)
	if err != nil {
		return nil, err
	}

	r := &Retriever{
		cfg:     cfg,
		plan:    p,
		units:   unitSvc,
		logger:  logger,
		metrics: collector,
	}
	if err := r.appendDefaultTransforms(registry); err != nil {
		return nil, err
	}
	return r, nil
}

// appendDefaultTransforms adds bin_average to data-variable chains that sit
// on a gridded dimension but declare no transform step of their own.
func (r *Retriever) appendDefaultTransforms(registry *converters.Registry) error {
	if len(r.cfg.Retriever.Transform) == 0 {
		return nil
	}
	for _, target := range r.cfg.Dataset.DataVars {
		dim := r.griddedDim(target)
		if dim == "" {
			continue
		}
		rules := r.plan[target.Name]
		for i := range rules {
			if rules[i].hasTransformStep() {
				continue
			}
			conv, err := registry.Build(config.ConverterConfig{
				Name:   string(converters.AlgorithmBinAverage),
				Params: map[string]interface{}{"dim": dim},
			})
			if err != nil {
				return err
			}
			rules[i].chain = append(rules[i].chain, conv)
			rules[i].names = append(rules[i].names, string(converters.AlgorithmBinAverage))
		}
	}
	return nil
}

// griddedDim returns the first of the variable's dimensions that has
// transform parameters configured, or ""
func (r *Retriever) griddedDim(target config.VariableConfig) string {
	dims := target.Dims
	if len(dims) == 0 {
		dims = []string{models.TimeDim}
	}
	for _, d := range dims {
		if _, ok := r.cfg.Retriever.Transform[d]; ok {
			return d
		}
	}
	return ""
}

// Retrieve builds the output dataset from the given input datasets.
// Input datasets and their variables are visited in sorted order so the
// result is deterministic regardless of map iteration.
func (r *Retriever) Retrieve(ctx context.Context, inputs map[string]*models.Dataset, interval models.Interval) (*models.Dataset, error) {
	out := models.NewDataset(r.cfg.Pipeline.DatastreamID())
	for k, v := range r.cfg.Dataset.Attrs {
		out.Attrs[k] = v
	}

	keys := sortedKeys(inputs)

	for _, target := range r.cfg.Dataset.Coords {
		v, companions, err := r.retrieveVar(ctx, target, inputs, keys, interval, out)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, &RetrievalError{Variable: target.Name, Reason: "no input matched a rule for mandatory coordinate"}
		}
		if err := out.AddCoord(v); err != nil {
			return nil, &RetrievalError{Variable: target.Name, Reason: "invalid coordinate", Err: err}
		}
		if err := addCompanions(out, companions); err != nil {
			return nil, &RetrievalError{Variable: target.Name, Reason: "invalid companion variable", Err: err}
		}
		r.recordOutcome("retrieved")
	}

	for _, target := range r.cfg.Dataset.DataVars {
		v, companions, err := r.retrieveVar(ctx, target, inputs, keys, interval, out)
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		if err := out.AddDataVar(v); err != nil {
			return nil, &RetrievalError{Variable: target.Name, Reason: "shape does not match declared dimensions", Err: err}
		}
		if err := addCompanions(out, companions); err != nil {
			return nil, &RetrievalError{Variable: target.Name, Reason: "invalid companion variable", Err: err}
		}
		r.recordOutcome("retrieved")
	}

	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("retrieved dataset failed validation: %w", err)
	}
	return out, nil
}

// retrieveVar resolves one output variable, returning it together with any
// companion variables its converters produced. Returns a nil variable with
// no error when every applicable rule is optional and nothing matched or
// converted.
func (r *Retriever) retrieveVar(ctx context.Context, target config.VariableConfig, inputs map[string]*models.Dataset, keys []string, interval models.Interval, out *models.Dataset) (*models.Variable, []*models.Variable, error) {
	rules := r.plan[target.Name]
	if len(rules) == 0 {
		r.logger.Debug(ctx, "[RETRIEVER] No rules for output variable, skipping", logging.Fields{
			"variable": target.Name,
		})
		r.recordOutcome("skipped")
		return nil, nil, nil
	}

	for _, rule := range rules {
		source := firstMatch(rule, inputs, keys)
		if source == nil && !rule.selfSufficient() {
			continue
		}

		var matched *models.Variable
		if source != nil {
			matched = source.Var(rule.sourceName(target.Name))
			if matched == nil && !rule.selfSufficient() {
				if rule.optional {
					r.logger.Info(ctx, "[RETRIEVER] Optional variable absent from matched input", logging.Fields{
						"variable": target.Name,
						"source":   rule.sourceName(target.Name),
						"input":    source.Name,
					})
					continue
				}
				r.recordOutcome("failed")
				return nil, nil, &RetrievalError{
					Variable: target.Name,
					Reason:   fmt.Sprintf("source variable %s absent from input %s", rule.sourceName(target.Name), source.Name),
				}
			}
		}

		convCtx := &converters.Context{
			VariableName: target.Name,
			Target:       &target,
			Source:       source,
			Retrieved:    out,
			Interval:     interval,
			Transform:    r.cfg.Retriever.Transform,
			Units:        r.units,
		}

		var input *models.Variable
		if matched != nil {
			input = matched.Copy()
		}

		result, err := rule.chain.Run(input, convCtx)
		if err != nil {
			if rule.optional {
				r.logger.Warn(ctx, "[RETRIEVER] Optional variable dropped after conversion failure", logging.Fields{
					"variable": target.Name,
					"error":    err.Error(),
				})
				r.recordOutcome("dropped")
				return nil, nil, nil
			}
			r.recordOutcome("failed")
			return nil, nil, &RetrievalError{Variable: target.Name, Reason: "converter chain failed", Err: err}
		}
		if result == nil {
			continue
		}

		return r.applySchema(result, target), convCtx.Companions, nil
	}

	if allOptional(rules) {
		r.logger.Info(ctx, "[RETRIEVER] Optional variable had no matching input", logging.Fields{
			"variable": target.Name,
		})
		r.recordOutcome("dropped")
		return nil, nil, nil
	}
	r.recordOutcome("failed")
	return nil, nil, &RetrievalError{Variable: target.Name, Reason: "no input variable matched any rule"}
}

// firstMatch returns the first input dataset whose identifier the rule's
// pattern matches, visiting identifiers in sorted order. First match wins
// across identifiers, not across rules.
func firstMatch(rule compiledRule, inputs map[string]*models.Dataset, keys []string) *models.Dataset {
	for _, key := range keys {
		if rule.pattern.MatchString(key) {
			return inputs[key]
		}
	}
	return nil
}

// applySchema renames the retrieved variable to its output identity and
// layers the declared metadata over whatever the converters produced.
func (r *Retriever) applySchema(v *models.Variable, target config.VariableConfig) *models.Variable {
	v.Name = target.Name
	if len(target.Dims) > 0 {
		v.Dims = append([]string(nil), target.Dims...)
	} else if len(v.Dims) == 0 {
		v.Dims = []string{models.TimeDim}
	}

	if target.Units != "" {
		v.Attrs[models.AttrUnits] = target.Units
	}
	if target.LongName != "" {
		v.Attrs[models.AttrLongName] = target.LongName
	}
	if target.StandardName != "" {
		v.Attrs[models.AttrStandardName] = target.StandardName
	}
	if target.ValidMin != nil {
		v.Attrs[models.AttrValidMin] = *target.ValidMin
	}
	if target.ValidMax != nil {
		v.Attrs[models.AttrValidMax] = *target.ValidMax
	}
	if target.FillValue != nil {
		v.Attrs[models.AttrFillValue] = *target.FillValue
	}
	for k, val := range target.Attrs {
		v.Attrs[k] = val
	}
	return v
}

// addCompanions registers converter-produced companion variables
func addCompanions(out *models.Dataset, companions []*models.Variable) error {
	for _, c := range companions {
		if err := out.AddDataVar(c); err != nil {
			return err
		}
	}
	return nil
}

// allOptional reports whether every rule in the list is optional
func allOptional(rules []compiledRule) bool {
	for _, rule := range rules {
		if !rule.optional {
			return false
		}
	}
	return true
}

// recordOutcome counts one variable retrieval outcome when metrics are wired
func (r *Retriever) recordOutcome(outcome string) {
	if r.metrics != nil {
		r.metrics.RecordRetrievalOutcome(outcome)
	}
}

// sortedKeys returns the map's keys in sorted order
func sortedKeys(m map[string]*models.Dataset) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
