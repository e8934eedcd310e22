// Error kinds surfaced by image decoding, pipeline construction and execution
package core

import "fmt"

// DecodingError reports an image resource that could not be parsed into a raster.
type DecodingError struct {
	Source string
	Err    error
}

func (e *DecodingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cannot decode image %s", e.Source)
	}
	return fmt.Sprintf("cannot decode image %s: %v", e.Source, e.Err)
}

func (e *DecodingError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports invalid parameters supplied when a step,
// pipeline or augmentation is constructed.
type ConfigurationError struct {
	Step   string
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s configuration: %s", e.Step, e.Reason)
	}
	return fmt.Sprintf("invalid %s configuration: %s %s", e.Step, e.Field, e.Reason)
}

// ShapeError reports a representation a step cannot operate on.
type ShapeError struct {
	Step     string
	Expected string
	Actual   string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Step, e.Expected, e.Actual)
}

// Configf builds a ConfigurationError with a formatted reason.
func Configf(step, field, format string, args ...interface{}) error {
	return &ConfigurationError{Step: step, Field: field, Reason: fmt.Sprintf(format, args...)}
}
