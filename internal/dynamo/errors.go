package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for kernel operations.
var (
	// ErrConfiguration indicates a configuration the kernel refuses to start with.
	ErrConfiguration = errors.New("dynamo: invalid configuration")

	// ErrNumericalAnomaly indicates a non-finite body value that was clamped.
	ErrNumericalAnomaly = errors.New("dynamo: non-finite body state clamped")

	// ErrPartition indicates blocks that do not tile the body range.
	ErrPartition = errors.New("dynamo: partition does not tile body range")

	// ErrUnknownName indicates a model, backend or policy name with no registration.
	ErrUnknownName = errors.New("dynamo: unknown name")
)

// ConfigError names the offending field of a rejected configuration.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("dynamo: invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// StepError wraps an error with the step it happened on.
type StepError struct {
	Step    int
	Time    float64
	Count   int
	Wrapped error
}

func (e *StepError) Error() string {
	if e.Count > 0 {
		return fmt.Sprintf("step %d (t=%.6f): %d bodies: %v", e.Step, e.Time, e.Count, e.Wrapped)
	}
	return fmt.Sprintf("step %d (t=%.6f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
