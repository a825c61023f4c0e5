package feed

import (
	"log/slog"

	"github.com/rickgao/realtime-client/internal/connection"
	"github.com/rickgao/realtime-client/internal/model"
)

// Endpoint paths under /ws/.
const (
	PathNotifications = "notifications"
	PathLeaderboard   = "leaderboard"
	PathPresence      = "online-status"
)

// Channels returns the default channel specs rendering into sink.
func Channels(sink Sink, logger *slog.Logger) []connection.ChannelSpec {
	h := NewHandlers(sink, logger)
	return []connection.ChannelSpec{
		{
			ID:          connection.Notifications,
			Path:        PathNotifications,
			PerIdentity: true,
			Handlers:    h.Notifications(),
		},
		{
			ID:       connection.Leaderboard,
			Path:     PathLeaderboard,
			Handlers: h.Leaderboard(),
		},
		{
			ID:       connection.Presence,
			Path:     PathPresence,
			Handlers: h.Presence(),
			OnOpen:   []any{model.GetOnlineUsers},
		},
	}
}
