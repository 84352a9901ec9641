package goroutine

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"go.uber.org/zap"
)

const (
	// StackTraceBufferSize is the buffer size for stack trace collection
	StackTraceBufferSize = 4096
)

// ErrGoexit is the PanicError value for a function that ended its goroutine
// with runtime.Goexit instead of returning.
var ErrGoexit = errors.New("goroutine exited via runtime.Goexit")

// PanicError carries a value recovered from a panicking function.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Guard runs fn and turns a panic into a *PanicError, so the caller only ever
// sees an error return. fn runs on its own goroutine; a runtime.Goexit there
// comes back as a *PanicError wrapping ErrGoexit.
func Guard(fn func() error) error {
	done := make(chan error, 1)
	go func() {
		returned := false
		defer func() {
			if r := recover(); r != nil {
				done <- &PanicError{Value: r, Stack: stack()}
				return
			}
			if !returned {
				done <- &PanicError{Value: ErrGoexit, Stack: stack()}
			}
		}()
		err := fn()
		returned = true
		done <- err
	}()
	return <-done
}

// Go runs fn in a new goroutine behind Guard and logs whatever it returns.
// It is the fire-and-forget form: the result is never delivered to the caller.
func Go(name string, logger *zap.SugaredLogger, fn func() error) {
	go func() {
		if err := Guard(fn); err != nil {
			logFailure(name, logger, err)
		}
	}()
}

// Recover recovers from panics in goroutines and logs them
// If logger is nil, falls back to stderr to ensure panic is recorded
func Recover(name string, logger *zap.SugaredLogger) {
	if r := recover(); r != nil {
		logFailure(name, logger, &PanicError{Value: r, Stack: stack()})
	}
}

func logFailure(name string, logger *zap.SugaredLogger, err error) {
	if pe, ok := err.(*PanicError); ok {
		if logger != nil {
			logger.Errorw("Goroutine panic recovered",
				"goroutine", name,
				"panic", pe.Value,
				"stack", pe.Stack)
			return
		}
		fmt.Fprintf(os.Stderr, "PANIC in goroutine %s (no logger): %v\n%s\n", name, pe.Value, pe.Stack)
		return
	}

	if logger != nil {
		logger.Errorw("Goroutine returned error", "goroutine", name, "error", err)
		return
	}
	fmt.Fprintf(os.Stderr, "ERROR in goroutine %s (no logger): %v\n", name, err)
}

func stack() string {
	buf := make([]byte, StackTraceBufferSize)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
