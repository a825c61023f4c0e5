package connection

import (
	"fmt"
	"time"
)

// ID identifies a logical channel.
type ID string

// Built-in channels.
const (
	Notifications ID = "notifications"
	Leaderboard   ID = "leaderboard"
	Presence      ID = "presence"
)

// State is a channel lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateFailed
	StateClosed
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateConnecting:   "connecting",
	StateOpen:         "open",
	StateReconnecting: "reconnecting",
	StateFailed:       "failed",
	StateClosed:       "closed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no automatic transition leaves s.
func (s State) Terminal() bool {
	return s == StateFailed || s == StateClosed
}

// allStateNames lists every state label, for one-hot metrics.
func allStateNames() []string {
	return stateNames[:]
}

// Snapshot is a point-in-time view of a channel.
type Snapshot struct {
	ID        ID            `json:"id"`
	State     State         `json:"-"`
	StateName string        `json:"state"`
	Attempt   int           `json:"attempt"`
	Queued    int           `json:"queued"`
	Endpoint  string        `json:"endpoint,omitempty"`
	ConnID    string        `json:"conn_id,omitempty"`
	NextDelay time.Duration `json:"next_delay,omitempty"`
	LastError string        `json:"last_error,omitempty"`
	OpenedAt  time.Time     `json:"opened_at,omitempty"`
}

// Transition describes one state change.
type Transition struct {
	Channel ID
	From    State
	To      State
	Attempt int
	Delay   time.Duration // scheduled delay, Reconnecting only
	Err     error         // cause, if any
	At      time.Time
}
