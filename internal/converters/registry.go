package converters

import (
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"datastream-pipeline/internal/config"
)

// Factory builds a converter from its configuration parameters
type Factory func(params map[string]interface{}) (Converter, error)

// Registry maps stable string keys to converter factories. Keys are resolved
// once when chains are built from configuration; unknown keys are
// configuration errors, not runtime failures.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	order     []string
}

// NewRegistry creates an empty converter registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a converter factory under a key
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("converter key cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("cannot register nil factory for converter %s", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("converter %s already registered", name)
	}
	r.factories[name] = factory
	r.order = append(r.order, name)
	return nil
}

// Build instantiates the converter a descriptor references
func (r *Registry) Build(cfg config.ConverterConfig) (Converter, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Name]
	r.mu.RUnlock()

	if !ok {
		return nil, config.NewConfigurationError(cfg.Name, "unknown converter", nil)
	}
	conv, err := factory(cfg.Params)
	if err != nil {
		return nil, config.NewConfigurationError(cfg.Name, "invalid converter parameters", err)
	}
	return conv, nil
}

// BuildChain instantiates an ordered converter chain
func (r *Registry) BuildChain(cfgs []config.ConverterConfig) (Chain, error) {
	chain := make(Chain, 0, len(cfgs))
	for _, cfg := range cfgs {
		conv, err := r.Build(cfg)
		if err != nil {
			return nil, err
		}
		chain = append(chain, conv)
	}
	return chain, nil
}

// Names returns registered keys in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// decodeParams converts a raw parameter map into a typed parameter record
// via a YAML round trip, so each converter declares its own strongly-typed
// parameters.
func decodeParams(params map[string]interface{}, out interface{}) error {
	data, err := yaml.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	return nil
}

// defaultRegistry holds the built-in converter set
var defaultRegistry = NewRegistry()

// DefaultRegistry returns the registry pre-loaded with built-in converters
func DefaultRegistry() *Registry {
	return defaultRegistry
}

func mustRegister(name string, factory Factory) {
	if err := defaultRegistry.Register(name, factory); err != nil {
		panic(err)
	}
}

func init() {
	mustRegister("units", newUnitConverter)
	mustRegister("string_time", newStringTimeConverter)
	mustRegister("epoch_time", newEpochTimeConverter)
	mustRegister("create_time_grid", newTimeGridCreator)
	mustRegister("bin_average", newTransformConverter(AlgorithmBinAverage))
	mustRegister("nearest_neighbor", newTransformConverter(AlgorithmNearestNeighbor))
	mustRegister("interpolate", newTransformConverter(AlgorithmInterpolate))
}
