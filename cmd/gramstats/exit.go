package main

import (
	"errors"
	"fmt"

	"github.com/jward/gramstats/internal/registry"
)

// Exit codes.
const (
	exitUsage             = 1
	exitFileNotFound      = 2
	exitOption            = 3
	exitArgs              = 4
	exitVersion           = 5
	exitBadBool           = 6
	exitNoArgs            = 7
	exitBadArtspec        = 8
	exitBadFileRead       = 9
	exitStdinAndFiles     = 10
	exitFileInsteadOfDir  = 11
	exitStdinAndCoverage  = 12
	exitConfiguration     = 13
	exitRun               = 14
	exitMissingCapability = 99
)

// ExitError is an error carrying the process exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func exitf(code int, format string, args ...any) *ExitError {
	return &ExitError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// exitCode maps err to the process exit code.
func exitCode(err error) int {
	var ee *ExitError
	switch {
	case errors.As(err, &ee):
		return ee.Code
	case errors.Is(err, registry.ErrMissingCapability):
		return exitMissingCapability
	case errors.Is(err, registry.ErrConfiguration):
		return exitConfiguration
	case errors.Is(err, registry.ErrCompute), errors.Is(err, registry.ErrPersistence):
		return exitRun
	}
	return exitUsage
}
