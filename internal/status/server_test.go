package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rickgao/realtime-client/internal/connection"
	"github.com/rickgao/realtime-client/internal/metrics"
	"github.com/rickgao/realtime-client/internal/model"
	"github.com/rickgao/realtime-client/internal/view"
)

type fakeChannels struct {
	snaps    []connection.Snapshot
	enqueued []any
	err      error
}

func (f *fakeChannels) Snapshots() []connection.Snapshot { return f.snaps }

func (f *fakeChannels) Stats() connection.ManagerStats {
	return connection.ManagerStats{Active: len(f.snaps)}
}

func (f *fakeChannels) Enqueue(id connection.ID, msg any) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, msg)
	return nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	open := connection.Snapshot{ID: connection.Leaderboard, State: connection.StateOpen, StateName: "open"}
	failed := connection.Snapshot{ID: connection.Presence, State: connection.StateFailed, StateName: "failed"}

	tests := []struct {
		name       string
		snaps      []connection.Snapshot
		journal    Pinger
		wantCode   int
		wantStatus string
	}{
		{"all open", []connection.Snapshot{open}, nil, http.StatusOK, StatusHealthy},
		{"no channels", nil, nil, http.StatusOK, StatusHealthy},
		{"failed channel", []connection.Snapshot{open, failed}, nil, http.StatusServiceUnavailable, StatusDegraded},
		{"journal down", []connection.Snapshot{open}, fakePinger{err: errors.New("refused")}, http.StatusServiceUnavailable, StatusUnhealthy},
		{"journal up", []connection.Snapshot{open}, fakePinger{}, http.StatusOK, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(Options{Channels: &fakeChannels{snaps: tt.snaps}, Journal: tt.journal})
			rec := get(t, h, "/health")

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			var body struct {
				Status   string `json:"status"`
				Channels []struct {
					ID    string `json:"id"`
					State string `json:"state"`
				} `json:"channels"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
			if len(body.Channels) != len(tt.snaps) {
				t.Errorf("channels = %d, want %d", len(body.Channels), len(tt.snaps))
			}
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(metrics.WithRegistry(reg))
	m.Connected("leaderboard")

	h := NewHandler(Options{Gatherer: reg, MetricsPath: "/prom"})
	rec := get(t, h, "/prom")

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "realtime_") {
		t.Errorf("body missing realtime metrics: %s", rec.Body.String())
	}
	if get(t, h, "/metrics").Code != http.StatusNotFound {
		t.Error("default path should not be served when overridden")
	}
}

func TestViewRoutes(t *testing.T) {
	board := view.NewBoard()
	board.Render(model.TagLeaderboardUpdate, []model.PlayerRow{{Rank: 1, Username: "ana"}})
	board.Render(model.TagOnlineUsers, []model.UserSummary{{ID: "1", Username: "ana"}})
	board.Render(model.TagNotification, model.Notification{
		Kind:     model.KindLevelUp,
		Message:  "Level 2",
		FollowUp: model.LevelUp{OldLevel: 1, NewLevel: 2},
	})

	h := NewHandler(Options{Board: board})

	tests := []struct {
		path string
		want string
	}{
		{"/v1/leaderboard", `"username":"ana"`},
		{"/v1/presence", `"count":1`},
		{"/v1/notifications", `"new_level":2`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(t, h, tt.path)
			if rec.Code != http.StatusOK {
				t.Fatalf("code = %d, want 200", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body = %s, want it to contain %s", rec.Body.String(), tt.want)
			}
		})
	}
}

func TestViewRoutesWithoutBoard(t *testing.T) {
	h := NewHandler(Options{})
	if code := get(t, h, "/v1/leaderboard").Code; code != http.StatusNotFound {
		t.Errorf("code = %d, want 404", code)
	}
}

func TestRefreshLeaderboard(t *testing.T) {
	tests := []struct {
		name     string
		state    connection.State
		err      error
		wantCode int
		wantSent int
	}{
		{"queued", connection.StateOpen, nil, http.StatusAccepted, 1},
		{"queued while reconnecting", connection.StateReconnecting, nil, http.StatusAccepted, 1},
		{"inactive", connection.StateOpen, connection.ErrUnknownChannel, http.StatusConflict, 0},
		{"closed", connection.StateOpen, connection.ErrChannelClosed, http.StatusServiceUnavailable, 0},
		{"failed", connection.StateFailed, nil, http.StatusServiceUnavailable, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &fakeChannels{
				err:   tt.err,
				snaps: []connection.Snapshot{{ID: connection.Leaderboard, State: tt.state}},
			}
			h := NewHandler(Options{Channels: ch})

			req := httptest.NewRequest(http.MethodPost, "/v1/leaderboard/refresh", nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if len(ch.enqueued) != tt.wantSent {
				t.Fatalf("enqueued = %v, want %d", ch.enqueued, tt.wantSent)
			}
			if tt.wantSent == 1 && ch.enqueued[0] != model.RefreshLeaderboard {
				t.Errorf("enqueued = %v", ch.enqueued)
			}
		})
	}
}
