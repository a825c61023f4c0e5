// Package feed binds server messages to a presentation Sink.
//
// It owns the handler table for each realtime channel and the default set of
// channel specs the connection manager opens.
package feed
