// Package queue provides the FIFO used for per-channel pending messages.
//
// Queue is a ring buffer that doubles its capacity once it is 70% full, so
// Push never fails and never blocks. It is owned by a single goroutine and is
// not safe for concurrent use.
package queue
