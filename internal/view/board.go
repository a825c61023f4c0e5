package view

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rickgao/realtime-client/internal/model"
	"github.com/rickgao/realtime-client/internal/queue"
)

// DefaultNotificationLimit is how many notifications a Board keeps.
const DefaultNotificationLimit = 50

// Board is a feed.Sink that remembers what a page would show: the
// leaderboard, who is online, and recent notifications.
type Board struct {
	mu     sync.RWMutex
	logger *slog.Logger
	now    func() time.Time

	leaderboard []model.PlayerRow
	boardAt     time.Time

	presence   map[model.ID]Presence
	presenceAt time.Time

	limit         int
	notifications *queue.Queue[Entry]
	lastLevelUp   *model.LevelUp
	sidequests    map[model.ID]model.Sidequest

	renders map[string]int64
}

// Presence is one online user.
type Presence struct {
	ID       model.ID `json:"id"`
	Username string   `json:"username"`
	LastSeen string   `json:"last_seen,omitempty"`
}

// Entry is a received notification.
type Entry struct {
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	Timestamp  string    `json:"timestamp,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
	Link       string    `json:"link,omitempty"`
}

// Option configures a Board.
type Option func(*Board)

// WithNotificationLimit sets how many notifications are kept.
func WithNotificationLimit(n int) Option {
	return func(b *Board) {
		if n > 0 {
			b.limit = n
		}
	}
}

// WithLogger sets the board logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Board) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBoard creates an empty board.
func NewBoard(opts ...Option) *Board {
	b := &Board{
		logger:     slog.Default(),
		now:        time.Now,
		presence:   make(map[model.ID]Presence),
		limit:      DefaultNotificationLimit,
		sidequests: make(map[model.ID]model.Sidequest),
		renders:    make(map[string]int64),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.notifications = queue.New[Entry](b.limit)
	return b
}

// Render implements feed.Sink.
func (b *Board) Render(tag string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch p := payload.(type) {
	case []model.PlayerRow:
		b.leaderboard = append([]model.PlayerRow(nil), p...)
		b.boardAt = b.now()
	case []model.UserSummary:
		b.presence = make(map[model.ID]Presence, len(p))
		for _, u := range p {
			b.presence[u.ID] = Presence{ID: u.ID, Username: u.Username, LastSeen: u.LastSeen}
		}
		b.presenceAt = b.now()
	case model.UserStatus:
		b.applyStatus(p)
		b.presenceAt = b.now()
	case model.Notification:
		b.addNotification(p)
	default:
		b.logger.Warn("unexpected payload", "tag", tag)
		return
	}
	b.renders[tag]++
}

func (b *Board) applyStatus(s model.UserStatus) {
	if !s.Online() {
		delete(b.presence, s.UserID)
		return
	}
	p := b.presence[s.UserID]
	p.ID = s.UserID
	if s.Username != "" {
		p.Username = s.Username
	}
	b.presence[s.UserID] = p
}

func (b *Board) addNotification(n model.Notification) {
	e := Entry{
		Kind:       n.Kind,
		Message:    n.Message,
		Timestamp:  n.Timestamp,
		ReceivedAt: b.now(),
	}
	switch f := n.FollowUp.(type) {
	case model.LevelUp:
		lu := f
		b.lastLevelUp = &lu
	case model.Sidequest:
		e.Link = f.SubmitPath()
		b.sidequests[f.ID] = f
	}

	for b.notifications.Len() >= b.limit {
		b.notifications.Pop()
	}
	b.notifications.Push(e)
}

// Leaderboard returns the current rows in rank order as received.
func (b *Board) Leaderboard() []model.PlayerRow {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]model.PlayerRow{}, b.leaderboard...)
}

// Online returns online users sorted by username.
func (b *Board) Online() []Presence {
	b.mu.RLock()
	out := make([]Presence, 0, len(b.presence))
	for _, p := range b.presence {
		out = append(out, p)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Username != out[j].Username {
			return out[i].Username < out[j].Username
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// IsOnline reports whether id is in the presence set.
func (b *Board) IsOnline(id model.ID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.presence[id]
	return ok
}

// Notifications returns kept notifications, newest first.
func (b *Board) Notifications() []Entry {
	b.mu.RLock()
	items := b.notifications.Items()
	b.mu.RUnlock()

	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items
}

// LastLevelUp returns the most recent level-up, if any.
func (b *Board) LastLevelUp() (model.LevelUp, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.lastLevelUp == nil {
		return model.LevelUp{}, false
	}
	return *b.lastLevelUp, true
}

// Sidequests returns announced sidequests sorted by id.
func (b *Board) Sidequests() []model.Sidequest {
	b.mu.RLock()
	out := make([]model.Sidequest, 0, len(b.sidequests))
	for _, sq := range b.sidequests {
		out = append(out, sq)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Renders returns how many payloads each tag rendered.
func (b *Board) Renders() map[string]int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]int64, len(b.renders))
	for k, v := range b.renders {
		out[k] = v
	}
	return out
}

// UpdatedAt returns when the leaderboard and presence set last changed.
func (b *Board) UpdatedAt() (leaderboard, presence time.Time) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.boardAt, b.presenceAt
}
