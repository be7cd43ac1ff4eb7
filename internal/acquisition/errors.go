package acquisition

import (
	"errors"
	"fmt"
)

// ErrNoSample reports that a tick produced no sample. It is recovered by the
// runner, never fatal.
var ErrNoSample = errors.New("no sample")

// ConnectionError reports that the serial port could not be opened.
type ConnectionError struct {
	Port string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to open serial port %s: %v", e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IOError reports that the log file could not be created or written.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("log file %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("log file %s %s failed: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ParseSkipError describes a record that was skipped. It matches ErrNoSample
// under errors.Is.
type ParseSkipError struct {
	Line   string
	Reason string
	Err    error
}

func (e *ParseSkipError) Error() string {
	if e.Line == "" {
		return "skipped: " + e.Reason
	}
	return fmt.Sprintf("skipped %q: %s", e.Line, e.Reason)
}

func (e *ParseSkipError) Is(target error) bool { return target == ErrNoSample }

func (e *ParseSkipError) Unwrap() error { return e.Err }
