package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rickgao/realtime-client/internal/dispatch"
	"github.com/rickgao/realtime-client/internal/model"
)

// Handlers decodes payloads and forwards them to a Sink.
type Handlers struct {
	sink   Sink
	logger *slog.Logger
}

// NewHandlers creates handlers rendering into sink.
func NewHandlers(sink Sink, logger *slog.Logger) *Handlers {
	if sink == nil {
		sink = Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{sink: sink, logger: logger}
}

// Notifications is the handler table for the notifications channel.
func (h *Handlers) Notifications() dispatch.Table {
	return dispatch.Table{
		model.TagNotification: h.notification,
		model.TagConnection:   h.connection,
	}
}

// Leaderboard is the handler table for the leaderboard channel.
func (h *Handlers) Leaderboard() dispatch.Table {
	return dispatch.Table{
		model.TagLeaderboardUpdate: h.leaderboardUpdate,
	}
}

// Presence is the handler table for the presence channel.
func (h *Handlers) Presence() dispatch.Table {
	return dispatch.Table{
		model.TagOnlineUsers: h.onlineUsers,
		model.TagUserStatus:  h.userStatus,
	}
}

func (h *Handlers) notification(_ context.Context, env dispatch.Envelope) error {
	var n model.Notification
	if err := env.Decode(&n); err != nil {
		return fmt.Errorf("decode notification: %w", err)
	}
	if n.Kind == "" {
		n.Kind = model.KindInfo
	}

	switch n.Kind {
	case model.KindLevelUp:
		var lu model.LevelUp
		if err := n.DecodeData(&lu); err != nil {
			h.logger.Warn("bad level_up data, rendering without follow-up", "error", err)
			break
		}
		n.FollowUp = lu
	case model.KindSidequest:
		var sq model.Sidequest
		if err := n.DecodeData(&sq); err != nil {
			h.logger.Warn("bad sidequest data, rendering without follow-up", "error", err)
			break
		}
		if sq.ID != "" {
			n.FollowUp = sq
		}
	}

	h.sink.Render(model.TagNotification, n)
	return nil
}

func (h *Handlers) connection(_ context.Context, env dispatch.Envelope) error {
	var c model.Connection
	if err := env.Decode(&c); err != nil {
		return fmt.Errorf("decode connection: %w", err)
	}
	h.logger.Info("notification channel acknowledged", "message", c.Message)
	return nil
}

func (h *Handlers) leaderboardUpdate(_ context.Context, env dispatch.Envelope) error {
	var u model.LeaderboardUpdate
	if err := env.Decode(&u); err != nil {
		return fmt.Errorf("decode leaderboard_update: %w", err)
	}
	rows := u.Data
	if rows == nil {
		rows = []model.PlayerRow{}
	}
	h.sink.Render(model.TagLeaderboardUpdate, rows)
	return nil
}

func (h *Handlers) onlineUsers(_ context.Context, env dispatch.Envelope) error {
	var u model.OnlineUsers
	if err := env.Decode(&u); err != nil {
		return fmt.Errorf("decode online_users: %w", err)
	}
	users := u.Users
	if users == nil {
		users = []model.UserSummary{}
	}
	h.sink.Render(model.TagOnlineUsers, users)
	return nil
}

func (h *Handlers) userStatus(_ context.Context, env dispatch.Envelope) error {
	var s model.UserStatus
	if err := env.Decode(&s); err != nil {
		return fmt.Errorf("decode user_status: %w", err)
	}
	if s.UserID == "" {
		return errors.New("user_status without user_id")
	}
	h.sink.Render(model.TagUserStatus, s)
	return nil
}
