package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is a raw configuration document tree as decoded from YAML
type Document map[string]interface{}

// Override replaces or inserts one value at a slash-delimited path inside a
// document tree. Array elements are addressed by integer path segments.
type Override struct {
	Path  string      `yaml:"path"`
	Value interface{} `yaml:"value"`
}

// loadBytes reads one configuration file from disk
func loadBytes(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration document: %w", err)
	}
	return data, nil
}

// LoadDocument reads a YAML document from disk
func LoadDocument(path string) (Document, error) {
	data, err := loadBytes(path)
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, NewConfigurationError(path, "failed to parse configuration document", err)
	}
	return doc, nil
}

// ApplyOverrides applies overrides in listed order to a deep copy of the
// base document; the base is never mutated. Later overrides may target paths
// created by earlier ones.
func ApplyOverrides(base Document, overrides []Override) (Document, error) {
	merged := deepCopyMap(base)
	for _, ov := range overrides {
		if err := applyOverride(merged, ov); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// applyOverride walks one slash path and sets the value at its end
func applyOverride(doc Document, ov Override) error {
	segments := splitPath(ov.Path)
	if len(segments) == 0 {
		return NewConfigurationError(ov.Path, "override path is empty", nil)
	}

	var node interface{} = map[string]interface{}(doc)
	for i, seg := range segments {
		last := i == len(segments)-1
		walked := strings.Join(segments[:i+1], "/")

		// yaml.Unmarshal into Document yields nested maps typed as Document
		if d, ok := node.(Document); ok {
			node = map[string]interface{}(d)
		}

		switch container := node.(type) {
		case map[string]interface{}:
			if last {
				// Replace an existing entry or insert a new key
				container[seg] = deepCopyValue(ov.Value)
				return nil
			}
			next, ok := container[seg]
			if !ok {
				return NewConfigurationError(walked, "override path does not exist", nil)
			}
			node = next

		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil {
				return NewConfigurationError(walked, "array segment is not an integer index", err)
			}
			if idx < 0 || idx >= len(container) {
				return NewConfigurationError(walked, fmt.Sprintf("array index %d out of range (length %d)", idx, len(container)), nil)
			}
			if last {
				container[idx] = deepCopyValue(ov.Value)
				return nil
			}
			node = container[idx]

		default:
			return NewConfigurationError(walked, "override path traverses a scalar value", nil)
		}
	}
	return nil
}

// splitPath splits a slash path, tolerating a leading slash
func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// deepCopyMap recursively copies a document tree
func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

// deepCopyValue recursively copies one document node
func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case Document:
		return deepCopyMap(val)
	case map[string]interface{}:
		return deepCopyMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return val
	}
}
