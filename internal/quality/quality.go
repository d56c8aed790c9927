// Package quality runs configured checker/handler blocks against a
// standardized dataset. Each block's checker produces a per-sample failure
// mask; handlers then record the failures as bit-packed flags on a qc_
// companion variable or repair the failing samples.
package quality

import (
	"context"
	"fmt"
	"sort"

	"datastream-pipeline/internal/config"
	"datastream-pipeline/internal/models"
	"datastream-pipeline/pkg/logging"
	"datastream-pipeline/pkg/metrics"
)

// Checker inspects one variable and returns a per-sample failure mask.
// A nil mask means the check is inapplicable to this variable.
type Checker interface {
	Check(v *models.Variable, ds *models.Dataset) ([]bool, error)
}

// Handler reacts to a checker's failure mask
type Handler interface {
	Run(ctx *HandlerContext) error
}

// HandlerContext carries what a handler needs: the dataset, the checked
// variable, the failure mask, and access to the engine's flag allocator.
type HandlerContext struct {
	Dataset  *models.Dataset
	Variable *models.Variable
	Failed   []bool

	// Block metadata recorded into flag attributes
	Meaning string

	engine *Engine
}

// AllocateBit assigns the next free flag bit for the variable, recording
// the block's meaning and the given assessment in the companion's flag
// attributes. Bits are sequential per variable: 1, 2, 4, ...
func (hc *HandlerContext) AllocateBit(assessment string) (*models.Variable, int64, error) {
	return hc.engine.allocateBit(hc.Dataset, hc.Variable, hc.Meaning, assessment)
}

// CheckError is a recoverable per-block failure: the block is logged and
// skipped for that variable, and the run continues.
type CheckError struct {
	Block    string
	Variable string
	Err      error
}

// Error implements the error interface
func (e *CheckError) Error() string {
	return fmt.Sprintf("quality check %s failed for variable %s: %v", e.Block, e.Variable, e.Err)
}

// Unwrap allows errors.Is and errors.As to reach the cause
func (e *CheckError) Unwrap() error {
	return e.Err
}

// FatalQualityError aborts the pipeline run. Raised by the fail_pipeline
// handler when data the pipeline cannot tolerate fails a check.
type FatalQualityError struct {
	Block    string
	Variable string
	Count    int
}

// Error implements the error interface
func (e *FatalQualityError) Error() string {
	return fmt.Sprintf("quality block %s failed pipeline: %d bad samples in variable %s", e.Block, e.Count, e.Variable)
}

// block is one compiled checker/handler unit
type block struct {
	name        string
	checkerName string
	checker     Checker
	handlers    []Handler
	apply       config.ApplyConfig
	exclude     map[string]bool
}

// Engine executes quality blocks in configured order and owns flag-bit
// allocation, so bit positions depend only on block order and variable
// iteration order.
type Engine struct {
	blocks  []block
	logger  *logging.StructuredLogger
	metrics *metrics.Collector

	// nextBit tracks the next free bit position per qc variable
	nextBit map[string]uint
}

// NewEngine compiles the configured quality managers against the registries
func NewEngine(cfgs []config.QualityManagerConfig, checkers *CheckerRegistry, handlers *HandlerRegistry, logger *logging.StructuredLogger, collector *metrics.Collector) (*Engine, error) {
	e := &Engine{
		logger:  logger,
		metrics: collector,
		nextBit: make(map[string]uint),
	}

	for _, cfg := range cfgs {
		checker, err := checkers.Build(cfg.Checker)
		if err != nil {
			return nil, config.NewConfigurationError("quality_management/"+cfg.Name, "invalid checker", err)
		}

		hs := make([]Handler, 0, len(cfg.Handlers))
		for _, hcfg := range cfg.Handlers {
			h, err := handlers.Build(hcfg)
			if err != nil {
				return nil, config.NewConfigurationError("quality_management/"+cfg.Name, "invalid handler", err)
			}
			hs = append(hs, h)
		}

		exclude := make(map[string]bool, len(cfg.Exclude))
		for _, name := range cfg.Exclude {
			exclude[name] = true
		}

		e.blocks = append(e.blocks, block{
			name:        cfg.Name,
			checkerName: cfg.Checker.Name,
			checker:     checker,
			handlers:    hs,
			apply:       cfg.Apply,
			exclude:     exclude,
		})
	}
	return e, nil
}

// Run applies every block to its selected variables. Checker errors are
// recoverable and skip the (block, variable) pair; handler errors abort.
// Bit allocation restarts per run, so one engine processing successive
// intervals assigns the same flag layout to each.
func (e *Engine) Run(ctx context.Context, ds *models.Dataset) error {
	e.nextBit = make(map[string]uint)
	for _, b := range e.blocks {
		for _, v := range e.targets(ds, b) {
			mask, err := b.checker.Check(v, ds)
			if err != nil {
				e.logger.Warn(ctx, "[QUALITY] Check failed, skipping block for variable", logging.Fields{
					"block":    b.name,
					"variable": v.Name,
					"error":    err.Error(),
				})
				if e.metrics != nil {
					e.metrics.QualityCheckErrors.Inc()
				}
				continue
			}
			if mask == nil {
				continue
			}
			if e.metrics != nil {
				e.metrics.QualityChecksTotal.WithLabelValues(b.checkerName).Inc()
			}

			hc := &HandlerContext{
				Dataset:  ds,
				Variable: v,
				Failed:   mask,
				Meaning:  b.name,
				engine:   e,
			}
			for _, h := range b.handlers {
				if err := h.Run(hc); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// targets selects the variables a block applies to, in dataset declaration
// order. Quality companion variables never receive checks of their own.
func (e *Engine) targets(ds *models.Dataset, b block) []*models.Variable {
	var pool []*models.Variable
	switch b.apply.To {
	case config.TargetCoords:
		pool = ds.Coords
	case config.TargetDataVars, "":
		pool = ds.DataVars
	case config.TargetVars:
		for _, name := range b.apply.Vars {
			if v := ds.Var(name); v != nil {
				pool = append(pool, v)
			}
		}
	}

	out := make([]*models.Variable, 0, len(pool))
	for _, v := range pool {
		if b.exclude[v.Name] || models.IsCompanionName(v.Name) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// allocateBit assigns the next sequential flag bit on the variable's qc_
// companion, creating the companion if needed, and appends the flag's
// mask, assessment and meaning attributes.
func (e *Engine) allocateBit(ds *models.Dataset, v *models.Variable, meaning, assessment string) (*models.Variable, int64, error) {
	qcName := models.QCVariableName(v.Name)
	qc := ds.Var(qcName)
	if qc == nil {
		qc = &models.Variable{
			Name:  qcName,
			Dims:  append([]string(nil), v.Dims...),
			Attrs: make(models.Attributes),
			Ints:  make([]int64, v.Len()),
		}
		qc.Attrs[models.AttrLongName] = fmt.Sprintf("Quality flags for %s", v.Name)
		if err := ds.AddDataVar(qc); err != nil {
			return nil, 0, fmt.Errorf("failed to create flag variable %s: %w", qcName, err)
		}
	}

	pos := e.nextBit[qcName]
	if pos >= 62 {
		return nil, 0, fmt.Errorf("flag variable %s has no free bits left", qcName)
	}
	e.nextBit[qcName] = pos + 1
	mask := int64(1) << pos

	qc.Attrs[models.AttrFlagMasks] = append(attrList(qc.Attrs[models.AttrFlagMasks]), mask)
	qc.Attrs[models.AttrFlagAssessments] = append(attrList(qc.Attrs[models.AttrFlagAssessments]), assessment)
	qc.Attrs[models.AttrFlagMeanings] = append(attrList(qc.Attrs[models.AttrFlagMeanings]), meaning)
	return qc, mask, nil
}

// attrList coerces an attribute value to a generic list for appending
func attrList(attr interface{}) []interface{} {
	if l, ok := attr.([]interface{}); ok {
		return l
	}
	return nil
}

// FlagSummary reports, per variable, how many samples carry at least one
// flag of each assessment. Keys are visited in sorted order by callers that
// log it.
func FlagSummary(ds *models.Dataset) map[string]map[string]int {
	out := make(map[string]map[string]int)
	for _, qc := range ds.DataVars {
		if qc.Ints == nil || !models.IsCompanionName(qc.Name) {
			continue
		}
		masks := qc.Attrs[models.AttrFlagMasks]
		assessments := qc.Attrs[models.AttrFlagAssessments]
		ml, al := attrInt64List(masks), attrStringList(assessments)

		counts := make(map[string]int)
		for _, flags := range qc.Ints {
			seen := make(map[string]bool)
			for i, m := range ml {
				if i < len(al) && flags&m != 0 && !seen[al[i]] {
					counts[al[i]]++
					seen[al[i]] = true
				}
			}
		}
		if len(counts) > 0 {
			out[qc.Name] = counts
		}
	}
	return out
}

func attrInt64List(attr interface{}) []int64 {
	var out []int64
	if l, ok := attr.([]interface{}); ok {
		for _, item := range l {
			switch n := item.(type) {
			case int64:
				out = append(out, n)
			case int:
				out = append(out, int64(n))
			case float64:
				out = append(out, int64(n))
			}
		}
	}
	return out
}

func attrStringList(attr interface{}) []string {
	var out []string
	if l, ok := attr.([]interface{}); ok {
		for _, item := range l {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// SortedVarNames is a helper for deterministic log output
func SortedVarNames(m map[string]map[string]int) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
