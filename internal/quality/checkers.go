package quality

import (
	"fmt"

	"datastream-pipeline/internal/models"
	"datastream-pipeline/internal/transform"
)

// missingChecker flags samples holding a missing value
type missingChecker struct{}

func newMissingChecker(params map[string]interface{}) (Checker, error) {
	return missingChecker{}, nil
}

func (missingChecker) Check(v *models.Variable, ds *models.Dataset) ([]bool, error) {
	if v.Values == nil {
		return nil, nil
	}
	mask := make([]bool, len(v.Values))
	for i := range v.Values {
		mask[i] = v.IsMissing(i)
	}
	return mask, nil
}

// boundChecker flags samples outside the variable's declared valid range.
// Inapplicable when the variable carries no bound attribute and the checker
// configures none.
type boundChecker struct {
	attr string
	// bound overrides the variable attribute when set
	bound *float64
	upper bool
}

func newValidMinChecker(params map[string]interface{}) (Checker, error) {
	bound, err := floatParam(params, "minimum")
	if err != nil {
		return nil, err
	}
	return &boundChecker{attr: models.AttrValidMin, bound: bound, upper: false}, nil
}

func newValidMaxChecker(params map[string]interface{}) (Checker, error) {
	bound, err := floatParam(params, "maximum")
	if err != nil {
		return nil, err
	}
	return &boundChecker{attr: models.AttrValidMax, bound: bound, upper: true}, nil
}

func (c *boundChecker) Check(v *models.Variable, ds *models.Dataset) ([]bool, error) {
	if v.Values == nil {
		return nil, nil
	}
	bound := c.bound
	if bound == nil {
		if b, ok := attrFloat(v.Attrs[c.attr]); ok {
			bound = &b
		}
	}
	if bound == nil {
		return nil, nil
	}

	mask := make([]bool, len(v.Values))
	for i, val := range v.Values {
		if v.IsMissing(i) {
			continue
		}
		if c.upper {
			mask[i] = val > *bound
		} else {
			mask[i] = val < *bound
		}
	}
	return mask, nil
}

// monotonicChecker flags samples that break a strictly increasing sequence.
// Used on time coordinates to catch clock resets in raw input.
type monotonicChecker struct{}

func newMonotonicChecker(params map[string]interface{}) (Checker, error) {
	return monotonicChecker{}, nil
}

func (monotonicChecker) Check(v *models.Variable, ds *models.Dataset) ([]bool, error) {
	if v.Values == nil {
		return nil, nil
	}
	mask := make([]bool, len(v.Values))
	prev, havePrev := 0.0, false
	for i, val := range v.Values {
		if v.IsMissing(i) {
			continue
		}
		if havePrev && val <= prev {
			mask[i] = true
			continue
		}
		prev, havePrev = val, true
	}
	return mask, nil
}

// exclusionFractionChecker flags output points whose excluded-fraction
// companion assesses at or beyond the configured assessment, using the
// thresholds recorded on the companion. Run after a gridded retrieval to
// carry transform quality into the flag variables.
type exclusionFractionChecker struct {
	assessment string
}

func newExclusionFractionChecker(params map[string]interface{}) (Checker, error) {
	assessment := "bad"
	if raw, ok := params["assessment"]; ok {
		s, ok := raw.(string)
		if !ok || (s != "bad" && s != "indeterminate") {
			return nil, fmt.Errorf("assessment must be \"bad\" or \"indeterminate\", got %v", raw)
		}
		assessment = s
	}
	return &exclusionFractionChecker{assessment: assessment}, nil
}

func (c *exclusionFractionChecker) Check(v *models.Variable, ds *models.Dataset) ([]bool, error) {
	comp := ds.Var(models.ExcludedFractionName(v.Name))
	if comp == nil || comp.Values == nil {
		return nil, nil
	}

	ind, okInd := attrFloat(comp.Attrs["indeterminate_threshold"])
	bad, okBad := attrFloat(comp.Attrs["bad_threshold"])
	if !okInd || !okBad {
		return nil, fmt.Errorf("companion %s carries no threshold attributes", comp.Name)
	}
	if len(comp.Values) != v.Len() {
		return nil, fmt.Errorf("companion %s has %d samples, variable has %d", comp.Name, len(comp.Values), v.Len())
	}

	th := transform.Thresholds{Indeterminate: ind, Bad: bad}
	mask := make([]bool, len(comp.Values))
	for i, frac := range comp.Values {
		if c.assessment == "bad" {
			mask[i] = th.Assess(frac) == transform.AssessBad
		} else {
			mask[i] = th.Assess(frac) != transform.AssessGood
		}
	}
	return mask, nil
}

// floatParam reads an optional numeric parameter
func floatParam(params map[string]interface{}, key string) (*float64, error) {
	raw, ok := params[key]
	if !ok {
		return nil, nil
	}
	f, ok := attrFloat(raw)
	if !ok {
		return nil, fmt.Errorf("parameter %s must be numeric, got %v", key, raw)
	}
	return &f, nil
}

// attrFloat coerces a decoded attribute or parameter value to float64
func attrFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
