// Package journal records channel lifecycle events for later diagnosis.
//
// Reporters must not block: the connection manager calls Report from a
// channel's event loop. The PostgreSQL reporter buffers events and writes
// them in batches from its own goroutines.
package journal
