// Package reader loads raw input files into unstandardized datasets. A raw
// dataset keeps every column as-is: numeric columns become float payloads,
// anything else stays as raw strings for the converter chains to parse.
package reader

import (
	"fmt"
	"sync"

	"datastream-pipeline/internal/models"
)

// Reader loads one input key (usually a file path) into named datasets.
// Multi-table formats may return several datasets per key; the CSV reader
// returns exactly one, keyed by the input key itself.
type Reader interface {
	Read(key string) (map[string]*models.Dataset, error)
}

// Factory builds a reader from its configuration parameters
type Factory func(params map[string]interface{}) (Reader, error)

// Registry maps stable string keys to reader factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty reader registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a reader factory under a key
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("reader registration requires a key and a factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("reader %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Build instantiates the named reader
func (r *Registry) Build(name string, params map[string]interface{}) (Reader, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown reader %s", name)
	}
	return factory(params)
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the registry pre-loaded with built-in readers
func DefaultRegistry() *Registry {
	return defaultRegistry
}

func init() {
	if err := defaultRegistry.Register("csv", newCSVReader); err != nil {
		panic(err)
	}
}
