package config

import "fmt"

// ConfigurationError is fatal and pre-execution: malformed override paths,
// schema validation failures, and unresolved component references all land
// here. Path names the offending location in the configuration document.
type ConfigurationError struct {
	Path    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s at %q", msg, e.Path)
	}
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", msg, e.Err)
	}
	return fmt.Sprintf("configuration error: %s", msg)
}

// Unwrap allows errors.Is and errors.As to reach the cause
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a configuration error with path context
func NewConfigurationError(path, message string, cause error) *ConfigurationError {
	return &ConfigurationError{Path: path, Message: message, Err: cause}
}
