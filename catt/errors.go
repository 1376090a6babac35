package catt

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrToolMissing is returned when the catt executable cannot be located.
	ErrToolMissing = errors.New("'catt' command not found. Is it installed and in your PATH?")
	// ErrCommandFailed is the sentinel wrapped by every *CommandError.
	ErrCommandFailed = errors.New("catt command failed")
	// ErrDeviceInactive classifies status failures that only mean "nothing is playing".
	ErrDeviceInactive = errors.New("device inactive")
)

// CommandError describes a catt invocation that exited unsuccessfully,
// or a detached local cast that exited inside its grace window.
type CommandError struct {
	Args      []string
	ExitCode  int
	Stderr    string
	EarlyExit bool
	// Cause is the underlying failure when the error did not come from a
	// catt process exit.
	Cause error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	if e.EarlyExit && e.ExitCode == 0 {
		return "catt exited before the local cast started"
	}
	return fmt.Sprintf("catt command failed with exit code %d", e.ExitCode)
}

func (e *CommandError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrCommandFailed}
	}
	return []error{ErrCommandFailed, e.Cause}
}

// IsInactive reports whether a status error only says that the receiver
// has no active media session.
func IsInactive(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDeviceInactive) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "inactive") || strings.Contains(msg, "Nothing is currently playing")
}
