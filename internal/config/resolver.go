package config

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// validate is shared; validator instances cache struct metadata
var validate = validator.New(validator.WithRequiredStructEnabled())

// Resolve merges a base document with an ordered override list and validates
// the result into a typed PipelineConfig. The base document is not mutated.
// Applying the same override list twice yields the same resolved config.
func Resolve(base Document, overrides []Override) (*PipelineConfig, error) {
	merged, err := ApplyOverrides(base, overrides)
	if err != nil {
		return nil, err
	}

	// Round-trip through YAML into the typed structure. A type-incompatible
	// override surfaces here as a decode error, never as a silent coercion.
	data, err := yaml.Marshal(merged)
	if err != nil {
		return nil, NewConfigurationError("", "failed to re-encode merged document", err)
	}

	var cfg PipelineConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&cfg); err != nil {
		return nil, NewConfigurationError("", "merged document does not match the configuration schema", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validateConfig runs struct-tag validation plus cross-field constraints
func validateConfig(cfg *PipelineConfig) error {
	if err := validate.Struct(cfg); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return NewConfigurationError(fe.Namespace(), fmt.Sprintf("field failed %q validation", fe.Tag()), nil)
		}
		return NewConfigurationError("", "schema validation failed", err)
	}

	coordNames := make(map[string]bool, len(cfg.Dataset.Coords))
	for _, c := range cfg.Dataset.Coords {
		coordNames[c.Name] = true
	}

	// A dimension used by a variable must itself be a declared coordinate
	for _, v := range append(append([]VariableConfig{}, cfg.Dataset.Coords...), cfg.Dataset.DataVars...) {
		for _, dim := range v.Dims {
			if !coordNames[dim] {
				return NewConfigurationError(
					fmt.Sprintf("dataset/%s/dims", v.Name),
					fmt.Sprintf("dimension %q is not a declared coordinate", dim), nil)
			}
		}
	}

	// Coordinates are always mandatory; each must have retrieval rules
	for _, c := range cfg.Dataset.Coords {
		if len(cfg.Retriever.Rules[c.Name]) == 0 {
			return NewConfigurationError(
				fmt.Sprintf("retriever/rules/%s", c.Name),
				"coordinate has no retrieval rules", nil)
		}
	}

	// Every rule pattern must compile
	for varName, rules := range cfg.Retriever.Rules {
		for i, rule := range rules {
			if _, err := regexp.Compile(rule.Pattern); err != nil {
				return NewConfigurationError(
					fmt.Sprintf("retriever/rules/%s/%d/pattern", varName, i),
					"invalid pattern", err)
			}
		}
	}

	// Trigger patterns must compile
	for i, trigger := range cfg.Pipeline.Triggers {
		if _, err := regexp.Compile(trigger); err != nil {
			return NewConfigurationError(
				fmt.Sprintf("pipeline/triggers/%d", i),
				"invalid trigger pattern", err)
		}
	}

	// Explicit-list targeting needs the list
	for i, qm := range cfg.Quality {
		if qm.Apply.To == TargetVars && len(qm.Apply.Vars) == 0 {
			return NewConfigurationError(
				fmt.Sprintf("quality_management/%d/apply_to", i),
				"target selector VARS requires a non-empty vars list", nil)
		}
	}

	return nil
}

// pipelineDocument is the top-level on-disk pipeline file: identity and
// interval parameters inline, the four configuration roles by reference,
// and deployment overrides.
type pipelineDocument struct {
	Pipeline map[string]interface{} `yaml:"pipeline"`
	Config   struct {
		Dataset   string `yaml:"dataset"`
		Retriever string `yaml:"retriever"`
		Quality   string `yaml:"quality_management"`
		Storage   string `yaml:"storage"`
	} `yaml:"config"`
	Overrides []Override `yaml:"overrides"`
}

// LoadPipeline loads a top-level pipeline document, pulls in the four
// referenced role documents, applies the deployment overrides, and resolves
// the combined tree into a validated configuration.
func LoadPipeline(path string) (*PipelineConfig, error) {
	raw, err := LoadDocument(path)
	if err != nil {
		return nil, err
	}

	data, err := yaml.Marshal(raw)
	if err != nil {
		return nil, NewConfigurationError(path, "failed to re-encode pipeline document", err)
	}
	var top pipelineDocument
	if err := yaml.Unmarshal(data, &top); err != nil {
		return nil, NewConfigurationError(path, "failed to parse pipeline document", err)
	}

	base := Document{"pipeline": top.Pipeline}
	dir := filepath.Dir(path)

	roles := []struct {
		key  string
		file string
		list bool
	}{
		{"dataset", top.Config.Dataset, false},
		{"retriever", top.Config.Retriever, false},
		{"quality_management", top.Config.Quality, true},
		{"storage", top.Config.Storage, false},
	}
	for _, role := range roles {
		if role.file == "" {
			continue
		}
		rolePath := role.file
		if !filepath.IsAbs(rolePath) {
			rolePath = filepath.Join(dir, rolePath)
		}
		if role.list {
			list, err := loadDocumentList(rolePath)
			if err != nil {
				return nil, err
			}
			base[role.key] = list
		} else {
			doc, err := LoadDocument(rolePath)
			if err != nil {
				return nil, err
			}
			base[role.key] = map[string]interface{}(doc)
		}
	}

	return Resolve(base, top.Overrides)
}

// loadDocumentList reads a YAML file whose top level is a sequence
func loadDocumentList(path string) ([]interface{}, error) {
	data, err := loadBytes(path)
	if err != nil {
		return nil, err
	}
	var list []interface{}
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, NewConfigurationError(path, "failed to parse configuration list document", err)
	}
	return list, nil
}
