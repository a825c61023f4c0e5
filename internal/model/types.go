package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Envelope tags sent by the server.
const (
	TagNotification      = "notification"
	TagConnection        = "connection"
	TagLeaderboardUpdate = "leaderboard_update"
	TagOnlineUsers       = "online_users"
	TagUserStatus        = "user_status"
)

// Notification kinds. Any other value is rendered as a plain notification.
const (
	KindInfo        = "info"
	KindSuccess     = "success"
	KindWarning     = "warning"
	KindError       = "error"
	KindLevelUp     = "level_up"
	KindAchievement = "achievement"
	KindSidequest   = "sidequest"
	KindPunishment  = "punishment"
)

// Presence statuses carried by user_status.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// ID is an identifier the server may encode as a string or a number.
type ID string

// UnmarshalJSON accepts "42", 42 and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the ID as text.
func (id ID) String() string {
	return string(id)
}

// Int returns the ID as an integer when it is numeric.
func (id ID) Int() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return n, err == nil
}

// -----------------------------------------------------------------------------
// Inbound payloads
// -----------------------------------------------------------------------------

// Notification is the payload of a "notification" frame.
type Notification struct {
	Kind      string          `json:"notification_type"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"` // ISO 8601 from the server

	// FollowUp is derived from Kind and Data, never read from the wire.
	FollowUp FollowUp `json:"-"`
}

// DecodeData decodes the kind-specific data object into v.
func (n Notification) DecodeData(v any) error {
	if len(n.Data) == 0 || bytes.Equal(n.Data, []byte("null")) {
		return nil
	}
	return json.Unmarshal(n.Data, v)
}

// FollowUp is a kind-specific action attached to a notification.
// It is nil for kinds that only need rendering.
type FollowUp interface {
	followUp()
}

// LevelUp is the data of a level_up notification.
type LevelUp struct {
	OldLevel         int `json:"old_level"`
	NewLevel         int `json:"new_level"`
	HonorPointsBonus int `json:"honor_points_bonus"`
}

func (LevelUp) followUp() {}

// Sidequest is the data of a sidequest notification.
type Sidequest struct {
	ID    ID     `json:"sidequest_id"`
	Title string `json:"sidequest_title"`
}

func (Sidequest) followUp() {}

// SubmitPath returns the page a sidequest notification links to.
func (s Sidequest) SubmitPath() string {
	if s.ID == "" {
		return ""
	}
	return "/sidequests/" + string(s.ID) + "/submit/"
}

// Connection is the payload of the "connection" acknowledgment.
type Connection struct {
	Message string `json:"message"`
}

// PlayerRow is one leaderboard row.
type PlayerRow struct {
	Rank        int    `json:"rank"`
	Username    string `json:"username"`
	Level       int    `json:"level"`
	TotalExp    int64  `json:"total_exp"`
	HonorPoints int64  `json:"honor_points"`
}

// LeaderboardUpdate is the payload of a "leaderboard_update" frame.
type LeaderboardUpdate struct {
	Data []PlayerRow `json:"data"`
}

// UserSummary is one entry of the online users list.
type UserSummary struct {
	ID       ID     `json:"id"`
	Username string `json:"username"`
	LastSeen string `json:"last_seen"`
}

// OnlineUsers is the payload of an "online_users" frame.
type OnlineUsers struct {
	Users []UserSummary `json:"users"`
}

// UserStatus is the payload of a "user_status" frame.
type UserStatus struct {
	UserID   ID     `json:"user_id"`
	Username string `json:"username"`
	Status   string `json:"status"`
}

// Online reports whether the status marks the user online.
func (s UserStatus) Online() bool {
	return s.Status == StatusOnline
}

// -----------------------------------------------------------------------------
// Outbound control messages
// -----------------------------------------------------------------------------

// Action is a client → server control message.
type Action struct {
	Action string `json:"action"`
}

// Known actions.
var (
	// GetOnlineUsers asks the presence server for the full online list.
	GetOnlineUsers = Action{Action: "get_online_users"}

	// RefreshLeaderboard asks the leaderboard server to resend the board.
	RefreshLeaderboard = Action{Action: "refresh"}
)
