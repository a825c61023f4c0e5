// Package connection runs the realtime channels.
//
// Each Channel is an actor: one goroutine owns its transport, reconnect timer
// and pending queue, and reacts to events from a mailbox one at a time.
// Dial, read and timer goroutines only post events. Every transport and every
// timer carries a generation number, so an event from a connection that has
// since been replaced, or from a timer that was cancelled, is ignored.
//
// Lifecycle:
//
//	Idle -> Connecting -> Open
//	Connecting|Open --failure--> Reconnecting --timer--> Connecting
//	Connecting|Open --failure, attempts exhausted--> Failed
//	any --Stop--> Closed
//
// The Manager opens the channels enabled for an identity and closes them on
// Stop. Handlers run on the channel goroutine and must not call the same
// channel's Enqueue, which waits for that goroutine.
package connection
