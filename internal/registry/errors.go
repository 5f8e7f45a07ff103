package registry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration     = errors.New("configuration error")
	ErrDuplicateArtifact = errors.New("duplicate artifact")
	ErrMissingDependency = errors.New("missing dependency")
	ErrCycleFound        = errors.New("cycle detected")
	ErrMissingCapability = errors.New("missing capability")
	ErrCompute           = errors.New("compute failed")
	ErrPersistence       = errors.New("persistence failed")
)

// ConfigurationError is a fatal problem with the registered artifacts or the
// configuration, found before any artifact runs. Kind is ErrConfiguration or
// one of its refinements.
type ConfigurationError struct {
	Kind     error
	Artifact string
	Msg      string
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *ConfigurationError) Unwrap() []error {
	if e.Kind == ErrConfiguration {
		return []error{ErrConfiguration}
	}
	return []error{ErrConfiguration, e.Kind}
}

func configf(artifact, format string, args ...any) error {
	return &ConfigurationError{Kind: ErrConfiguration, Artifact: artifact, Msg: fmt.Sprintf(format, args...)}
}

func duplicateError(name string) error {
	return &ConfigurationError{Kind: ErrDuplicateArtifact, Artifact: name, Msg: fmt.Sprintf("%q registered twice", name)}
}

func missingDependencyError(name, dep string) error {
	return &ConfigurationError{
		Kind:     ErrMissingDependency,
		Artifact: name,
		Msg:      fmt.Sprintf("%q depends on unregistered %q", name, dep),
	}
}

func cycleError(path []string) error {
	msg := "cycle"
	if len(path) > 0 {
		msg = "cycle: " + strings.Join(path, " -> ")
	}
	artifact := ""
	if len(path) > 0 {
		artifact = path[0]
	}
	return &ConfigurationError{Kind: ErrCycleFound, Artifact: artifact, Msg: msg}
}

// NewConfigurationError wraps err as a configuration failure.
func NewConfigurationError(err error) error {
	return &ConfigurationError{Kind: ErrConfiguration, Msg: err.Error()}
}

// MissingCapabilityError reports an artifact that must run but whose
// capability requirement is not satisfied.
type MissingCapabilityError struct {
	Artifact   string
	Capability string
}

func (e *MissingCapabilityError) Error() string {
	return fmt.Sprintf("%s: artifact %q was requested but requires %q which was not supplied",
		ErrMissingCapability, e.Artifact, e.Capability)
}

func (e *MissingCapabilityError) Unwrap() error { return ErrMissingCapability }

// ComputeError is an artifact's compute function failing. The remaining run
// set is abandoned.
type ComputeError struct {
	Artifact string
	Err      error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrCompute, e.Artifact, e.Err)
}

func (e *ComputeError) Unwrap() []error { return []error{ErrCompute, e.Err} }

// PersistenceError is an I/O failure reading or writing an artifact's
// table or image.
type PersistenceError struct {
	Artifact string
	Path     string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %s: %v", ErrPersistence, e.Artifact, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }
