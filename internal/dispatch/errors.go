package dispatch

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrHandlerFault   = errors.New("handler fault")
)

// MalformedFrameError describes a frame that could not be decoded.
type MalformedFrameError struct {
	Reason string
	Size   int
	Err    error
}

func (e *MalformedFrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed frame (%d bytes): %s: %v", e.Size, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed frame (%d bytes): %s", e.Size, e.Reason)
}

func (e *MalformedFrameError) Unwrap() error { return e.Err }

// Is matches ErrMalformedFrame.
func (e *MalformedFrameError) Is(target error) bool { return target == ErrMalformedFrame }

// HandlerFaultError describes a handler that returned an error or panicked.
type HandlerFaultError struct {
	Type  string
	Err   error  // returned error, nil on panic
	Panic any    // recovered value, nil on returned error
	Stack []byte // stack at the panic site
}

func (e *HandlerFaultError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("handler fault for %q: panic: %v", e.Type, e.Panic)
	}
	return fmt.Sprintf("handler fault for %q: %v", e.Type, e.Err)
}

func (e *HandlerFaultError) Unwrap() error { return e.Err }

// Is matches ErrHandlerFault.
func (e *HandlerFaultError) Is(target error) bool { return target == ErrHandlerFault }
