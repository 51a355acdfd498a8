// Package errs defines the error taxonomy shared by the detection engine.
package errs

import "fmt"

// ConfigError reports a missing or malformed configuration file. It is fatal
// and surfaced before any model work begins.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// DataLoadError reports a missing or corrupt input file. Fatal to the current
// operation only.
type DataLoadError struct {
	Path string
	Err  error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *DataLoadError) Unwrap() error { return e.Err }

// NotFittedError reports a transform requested before any fit. This is a
// programming error on the caller's side.
type NotFittedError struct {
	Component string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("%s: not fitted", e.Component)
}

// InsufficientDataError reports a batch too small for a particular model. The
// affected model is skipped; training of the other models continues.
type InsufficientDataError struct {
	Model    string
	Rows     int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: %d rows available, %d required", e.Model, e.Rows, e.Required)
}

// ExternalLookupError reports a failed enrichment call. Callers must degrade
// to a placeholder value instead of aborting.
type ExternalLookupError struct {
	Lookup string
	Key    string
	Err    error
}

func (e *ExternalLookupError) Error() string {
	return fmt.Sprintf("lookup %s(%s): %v", e.Lookup, e.Key, e.Err)
}

func (e *ExternalLookupError) Unwrap() error { return e.Err }
