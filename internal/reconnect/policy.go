package reconnect

import "time"

// Default policy values.
const (
	DefaultBaseDelay   = 3 * time.Second
	DefaultMaxAttempts = 5
)

// Policy maps an attempt count to a reconnect delay.
type Policy struct {
	BaseDelay   time.Duration
	MaxAttempts int
}

// DefaultPolicy returns the 3s × attempt, 5 attempt policy.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:   DefaultBaseDelay,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Delay returns the wait before the given attempt. Attempts are counted from 1;
// anything lower yields zero.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return p.BaseDelay * time.Duration(attempt)
}

// Exhausted reports whether no further attempt may be scheduled.
func (p Policy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}

// Total returns the sum of all delays the policy will ever schedule.
func (p Policy) Total() time.Duration {
	var total time.Duration
	for a := 1; a <= p.MaxAttempts; a++ {
		total += p.Delay(a)
	}
	return total
}
