package quality

import (
	"fmt"
	"sync"

	"datastream-pipeline/internal/config"
)

// CheckerFactory builds a checker from its configuration parameters
type CheckerFactory func(params map[string]interface{}) (Checker, error)

// HandlerFactory builds a handler from its configuration parameters
type HandlerFactory func(params map[string]interface{}) (Handler, error)

// CheckerRegistry maps stable string keys to checker factories
type CheckerRegistry struct {
	mu        sync.RWMutex
	factories map[string]CheckerFactory
}

// NewCheckerRegistry creates an empty checker registry
func NewCheckerRegistry() *CheckerRegistry {
	return &CheckerRegistry{factories: make(map[string]CheckerFactory)}
}

// Register adds a checker factory under a key
func (r *CheckerRegistry) Register(name string, factory CheckerFactory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("checker registration requires a key and a factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("checker %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Build instantiates the checker a component descriptor references
func (r *CheckerRegistry) Build(cfg config.ComponentConfig) (Checker, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, config.NewConfigurationError(cfg.Name, "unknown checker", nil)
	}
	return factory(cfg.Params)
}

// HandlerRegistry maps stable string keys to handler factories
type HandlerRegistry struct {
	mu        sync.RWMutex
	factories map[string]HandlerFactory
}

// NewHandlerRegistry creates an empty handler registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{factories: make(map[string]HandlerFactory)}
}

// Register adds a handler factory under a key
func (r *HandlerRegistry) Register(name string, factory HandlerFactory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("handler registration requires a key and a factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("handler %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Build instantiates the handler a component descriptor references
func (r *HandlerRegistry) Build(cfg config.ComponentConfig) (Handler, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, config.NewConfigurationError(cfg.Name, "unknown handler", nil)
	}
	return factory(cfg.Params)
}

var (
	defaultCheckers = NewCheckerRegistry()
	defaultHandlers = NewHandlerRegistry()
)

// DefaultCheckers returns the registry pre-loaded with built-in checkers
func DefaultCheckers() *CheckerRegistry {
	return defaultCheckers
}

// DefaultHandlers returns the registry pre-loaded with built-in handlers
func DefaultHandlers() *HandlerRegistry {
	return defaultHandlers
}

func init() {
	for name, f := range map[string]CheckerFactory{
		"missing":            newMissingChecker,
		"valid_min":          newValidMinChecker,
		"valid_max":          newValidMaxChecker,
		"monotonic":          newMonotonicChecker,
		"exclusion_fraction": newExclusionFractionChecker,
	} {
		if err := defaultCheckers.Register(name, f); err != nil {
			panic(err)
		}
	}
	for name, f := range map[string]HandlerFactory{
		"record_quality":     newRecordQualityHandler,
		"replace_failed":     newReplaceFailedHandler,
		"interpolate_failed": newInterpolateFailedHandler,
		"fail_pipeline":      newFailPipelineHandler,
	} {
		if err := defaultHandlers.Register(name, f); err != nil {
			panic(err)
		}
	}
}
