// Package metrics provides Prometheus metrics for the realtime channels.
//
// Key metrics:
//   - Channel state (one-hot gauge per channel and state)
//   - Connects, reconnects scheduled and exhausted channels
//   - Frames received, dispatched, malformed and unknown
//   - Handler faults by tag
//   - Pending queue depth and frames sent
//
// A nil *Metrics is valid and records nothing.
package metrics
