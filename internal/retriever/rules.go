package retriever

import (
	"fmt"
	"regexp"

	"datastream-pipeline/internal/config"
	"datastream-pipeline/internal/converters"
)

// compiledRule is one retrieval rule with its identifier pattern compiled
// and its converter chain resolved against the registry.
type compiledRule struct {
	pattern  *regexp.Regexp
	source   string
	optional bool
	chain    converters.Chain
	names    []string
}

// plan maps each output variable to its ordered compiled rules
type plan map[string][]compiledRule

// compilePlan resolves every rule in the retriever configuration. Patterns
// are compiled once here; unknown converter keys or malformed regular
// expressions surface as configuration errors before any data is touched.
func compilePlan(cfg config.RetrieverConfig, registry *converters.Registry) (plan, error) {
	p := make(plan, len(cfg.Rules))
	for varName, rules := range cfg.Rules {
		compiled := make([]compiledRule, 0, len(rules))
		for _, rule := range rules {
			cr, err := compileRule(rule, registry)
			if err != nil {
				return nil, config.NewConfigurationError(
					"retriever/rules/"+varName, "invalid retrieval rule", err)
			}
			compiled = append(compiled, cr)
		}
		p[varName] = compiled
	}
	return p, nil
}

// compileRule compiles one rule's pattern and builds its converter chain.
// create_time_grid must lead its chain: earlier steps would receive a nil
// variable, since grid chains run without an extracted input.
func compileRule(rule config.RuleConfig, registry *converters.Registry) (compiledRule, error) {
	pattern, err := regexp.Compile(rule.Pattern)
	if err != nil {
		return compiledRule{}, err
	}

	for i, c := range rule.Converters {
		if c.Name == "create_time_grid" && i != 0 {
			return compiledRule{}, fmt.Errorf("create_time_grid must be the first converter in its chain")
		}
	}

	chain, err := registry.BuildChain(rule.Converters)
	if err != nil {
		return compiledRule{}, err
	}

	names := make([]string, len(rule.Converters))
	for i, c := range rule.Converters {
		names[i] = c.Name
	}

	return compiledRule{
		pattern:  pattern,
		source:   rule.Source,
		optional: rule.Optional,
		chain:    chain,
		names:    names,
	}, nil
}

// sourceName returns the raw variable name this rule extracts, defaulting
// to the output variable's own name.
func (r compiledRule) sourceName(target string) string {
	if r.source != "" {
		return r.source
	}
	return target
}

// hasTransformStep reports whether the chain already contains a regridding
// algorithm or a grid creator, in which case no default is appended.
func (r compiledRule) hasTransformStep() bool {
	for _, name := range r.names {
		if name == "create_time_grid" || converters.IsTransformAlgorithm(name) {
			return true
		}
	}
	return false
}

// selfSufficient reports whether the chain can produce output with no
// extracted input variable, as create_time_grid does.
func (r compiledRule) selfSufficient() bool {
	for _, name := range r.names {
		if name == "create_time_grid" {
			return true
		}
	}
	return false
}
