package emit

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	// ErrOutputWrite is matched by every OutputWriteError.
	ErrOutputWrite = errors.New("output write failed")

	// ErrDownstreamClosed reports that the reader of standard output went
	// away. It is a quiet termination, not a failure to report.
	ErrDownstreamClosed = errors.New("downstream closed")
)

// OutputWriteError reports a failure creating, writing or finalizing the
// manifest.
type OutputWriteError struct {
	Path string
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *OutputWriteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *OutputWriteError) Unwrap() error {
	return e.Err
}

// Is matches ErrOutputWrite.
func (e *OutputWriteError) Is(target error) bool {
	return target == ErrOutputWrite
}

// wrapWrite classifies err. A broken pipe becomes ErrDownstreamClosed.
func wrapWrite(path, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrDownstreamClosed) || errors.Is(err, syscall.EPIPE) {
		return ErrDownstreamClosed
	}
	var owe *OutputWriteError
	if errors.As(err, &owe) {
		return err
	}
	return &OutputWriteError{Path: path, Op: op, Err: err}
}
