package connection

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrTransport          = errors.New("transport error")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
	ErrChannelClosed      = errors.New("channel closed")
	ErrUnknownChannel     = errors.New("unknown channel")
	ErrAlreadyStarted     = errors.New("manager already started")
)

// TransportError is a network or protocol failure reported by the transport.
// It always leads to a reconnect, never to a crash.
type TransportError struct {
	Channel ID
	Op      string // "dial", "read", "send"
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Channel, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is matches ErrTransport.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ReconnectExhaustedError reports a channel that gave up reconnecting.
type ReconnectExhaustedError struct {
	Channel  ID
	Attempts int
	Last     error // failure that triggered the final check
}

func (e *ReconnectExhaustedError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("%s: reconnect attempts exhausted after %d attempts: %v", e.Channel, e.Attempts, e.Last)
	}
	return fmt.Sprintf("%s: reconnect attempts exhausted after %d attempts", e.Channel, e.Attempts)
}

func (e *ReconnectExhaustedError) Unwrap() error { return e.Last }

// Is matches ErrReconnectExhausted.
func (e *ReconnectExhaustedError) Is(target error) bool { return target == ErrReconnectExhausted }
