package quality

import "fmt"

// recordQualityHandler ORs a freshly allocated flag bit into the qc_
// companion for every failing sample.
type recordQualityHandler struct {
	assessment string
}

func newRecordQualityHandler(params map[string]interface{}) (Handler, error) {
	assessment := "bad"
	if raw, ok := params["assessment"]; ok {
		s, ok := raw.(string)
		if !ok || (s != "bad" && s != "indeterminate" && s != "good") {
			return nil, fmt.Errorf("assessment must be one of good, indeterminate, bad; got %v", raw)
		}
		assessment = s
	}
	return &recordQualityHandler{assessment: assessment}, nil
}

func (h *recordQualityHandler) Run(hc *HandlerContext) error {
	qc, mask, err := hc.AllocateBit(h.assessment)
	if err != nil {
		return err
	}
	for i, failed := range hc.Failed {
		if failed && i < len(qc.Ints) {
			qc.Ints[i] |= mask
		}
	}
	return nil
}

// replaceFailedHandler overwrites failing samples with the missing marker
type replaceFailedHandler struct{}

func newReplaceFailedHandler(params map[string]interface{}) (Handler, error) {
	return replaceFailedHandler{}, nil
}

func (replaceFailedHandler) Run(hc *HandlerContext) error {
	if hc.Variable.Values == nil {
		return nil
	}
	for i, failed := range hc.Failed {
		if failed {
			hc.Variable.SetMissing(i)
		}
	}
	return nil
}

// interpolateFailedHandler repairs failing samples by linear interpolation
// between the surrounding passing samples along the variable's first
// dimension. Failing samples at the edges stay missing.
type interpolateFailedHandler struct{}

func newInterpolateFailedHandler(params map[string]interface{}) (Handler, error) {
	return interpolateFailedHandler{}, nil
}

func (interpolateFailedHandler) Run(hc *HandlerContext) error {
	v := hc.Variable
	if v.Values == nil {
		return nil
	}

	coord := positions(hc)
	for i, failed := range hc.Failed {
		if !failed {
			continue
		}
		before, after := -1, -1
		for j := i - 1; j >= 0; j-- {
			if !hc.Failed[j] && !v.IsMissing(j) {
				before = j
				break
			}
		}
		for j := i + 1; j < len(hc.Failed); j++ {
			if !hc.Failed[j] && !v.IsMissing(j) {
				after = j
				break
			}
		}
		if before < 0 || after < 0 {
			v.SetMissing(i)
			continue
		}
		span := coord[after] - coord[before]
		if span == 0 {
			v.Values[i] = v.Values[before]
			continue
		}
		frac := (coord[i] - coord[before]) / span
		v.Values[i] = v.Values[before] + frac*(v.Values[after]-v.Values[before])
	}
	return nil
}

// positions returns the interpolation axis: the variable's dimension
// coordinate when present, sample index otherwise.
func positions(hc *HandlerContext) []float64 {
	if len(hc.Variable.Dims) == 1 {
		if c := hc.Dataset.Coord(hc.Variable.Dims[0]); c != nil && c.Values != nil && len(c.Values) == hc.Variable.Len() {
			return c.Values
		}
	}
	out := make([]float64, hc.Variable.Len())
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

// failPipelineHandler aborts the run when any sample failed the check
type failPipelineHandler struct{}

func newFailPipelineHandler(params map[string]interface{}) (Handler, error) {
	return failPipelineHandler{}, nil
}

func (failPipelineHandler) Run(hc *HandlerContext) error {
	count := 0
	for _, failed := range hc.Failed {
		if failed {
			count++
		}
	}
	if count == 0 {
		return nil
	}
	return &FatalQualityError{Block: hc.Meaning, Variable: hc.Variable.Name, Count: count}
}
