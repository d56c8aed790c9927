package models

import "strings"

// Prefix and suffix conventions for quality companion variables
const (
	qcPrefix               = "qc_"
	excludedFractionSuffix = "_excluded_fraction"
)

// QCVariableName returns the name of the bit-packed flag companion for a
// data variable.
func QCVariableName(name string) string {
	return qcPrefix + name
}

// ExcludedFractionName returns the name of the excluded-fraction companion
// the transform engine writes for a data variable.
func ExcludedFractionName(name string) string {
	return qcPrefix + name + excludedFractionSuffix
}

// IsCompanionName reports whether a variable name follows a quality
// companion convention and so should not itself receive companions.
func IsCompanionName(name string) bool {
	return strings.HasPrefix(name, qcPrefix)
}

// BadSampleMask derives a per-sample bad mask for the named variable from
// its qc_ companion, ORing the bits whose declared assessment is "bad".
// Returns nil when the dataset carries no flag companion, or when the
// companion declares no bad bits.
func BadSampleMask(ds *Dataset, name string) []bool {
	qc := ds.Var(QCVariableName(name))
	if qc == nil || qc.Ints == nil {
		return nil
	}

	masks := attrInt64Slice(qc.Attrs[AttrFlagMasks])
	assessments := attrStringSlice(qc.Attrs[AttrFlagAssessments])

	var badBits int64
	for i, m := range masks {
		if i < len(assessments) && assessments[i] == "bad" {
			badBits |= m
		}
	}
	if badBits == 0 {
		return nil
	}

	mask := make([]bool, len(qc.Ints))
	for i, flags := range qc.Ints {
		mask[i] = flags&badBits != 0
	}
	return mask
}

// attrInt64Slice coerces an attribute value to []int64. Attributes decoded
// from YAML or JSON arrive as []interface{} with mixed numeric types.
func attrInt64Slice(attr interface{}) []int64 {
	switch v := attr.(type) {
	case []int64:
		return v
	case []int:
		out := make([]int64, len(v))
		for i, n := range v {
			out[i] = int64(n)
		}
		return out
	case []interface{}:
		out := make([]int64, 0, len(v))
		for _, item := range v {
			switch n := item.(type) {
			case int:
				out = append(out, int64(n))
			case int64:
				out = append(out, n)
			case float64:
				out = append(out, int64(n))
			}
		}
		return out
	}
	return nil
}

// attrStringSlice coerces an attribute value to []string
func attrStringSlice(attr interface{}) []string {
	switch v := attr.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
