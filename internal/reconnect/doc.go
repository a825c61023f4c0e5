// Package reconnect implements the reconnect policy shared by all channels.
//
// Backoff is linear: the n-th retry waits BaseDelay × n. A channel gives up
// once MaxAttempts retries have been scheduled and failed.
package reconnect
