package connection

import "github.com/rickgao/realtime-client/internal/transport"

// event is the closed set of inputs a channel reacts to.
type event interface {
	isEvent()
}

type (
	// openEvent requests a connection for identity.
	openEvent struct{ identity string }

	// stopEvent tears the channel down for good.
	stopEvent struct{}

	// enqueueEvent appends an encoded frame to the pending queue. The loop
	// answers on res, when set, once the frame is accepted or refused.
	enqueueEvent struct {
		frame []byte
		res   chan error
	}

	// readyEvent reports a completed handshake for connection gen.
	readyEvent struct {
		gen    uint64
		client transport.Client
	}

	// dialFailedEvent reports a failed handshake for connection gen.
	dialFailedEvent struct {
		gen uint64
		err error
	}

	// frameEvent carries one inbound frame from connection gen.
	frameEvent struct {
		gen   uint64
		frame transport.Frame
	}

	// closedEvent reports that connection gen went away.
	closedEvent struct {
		gen uint64
		err error
	}

	// timerEvent fires when reconnect timer gen elapses.
	timerEvent struct{ gen uint64 }
)

func (openEvent) isEvent()       {}
func (stopEvent) isEvent()       {}
func (enqueueEvent) isEvent()    {}
func (readyEvent) isEvent()      {}
func (dialFailedEvent) isEvent() {}
func (frameEvent) isEvent()      {}
func (closedEvent) isEvent()     {}
func (timerEvent) isEvent()      {}

func (ev enqueueEvent) reply(err error) {
	if ev.res != nil {
		ev.res <- err
	}
}
