package main

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/rickgao/realtime-client/internal/model"
)

func TestPrinter_Format(t *testing.T) {
	tests := []struct {
		name    string
		tag     string
		payload any
		want    string
	}{
		{
			"notification",
			model.TagNotification,
			model.Notification{Kind: "info", Message: "hi"},
			`[notification] kind=info message="hi"`,
		},
		{
			"leaderboard",
			model.TagLeaderboardUpdate,
			[]model.PlayerRow{{Rank: 1, Username: "ann", Level: 7}},
			"[leaderboard_update] rows=1 top=ann(lvl 7)",
		},
		{
			"empty leaderboard",
			model.TagLeaderboardUpdate,
			[]model.PlayerRow{},
			"[leaderboard_update] rows=0 top=-",
		},
		{
			"online users",
			model.TagOnlineUsers,
			[]model.UserSummary{{ID: "1"}, {ID: "2"}},
			"[online_users] users=2",
		},
		{
			"user status",
			model.TagUserStatus,
			model.UserStatus{UserID: "9", Status: model.StatusOnline},
			"[user_status] user=9 status=online",
		},
		{
			"other",
			"custom",
			map[string]int{"a": 1},
			`[custom] {"a":1}`,
		},
	}

	p := &printer{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.format(tt.tag, tt.payload); got != tt.want {
				t.Errorf("format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrinter_Verbose(t *testing.T) {
	p := &printer{verbose: true}
	got := p.format("user_status", model.UserStatus{UserID: "9", Status: "offline"})
	if !strings.HasPrefix(got, "[user_status] {\n") {
		t.Errorf("format() = %q, want indented JSON", got)
	}
	if !strings.Contains(got, `"status": "offline"`) {
		t.Errorf("format() = %q, missing status field", got)
	}
}

func TestPrinter_ConcurrentRender(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{w: &buf}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Render(model.TagOnlineUsers, []model.UserSummary{})
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 8 {
		t.Fatalf("got %d lines, want 8", len(lines))
	}
	for _, l := range lines {
		if l != "[online_users] users=0" {
			t.Errorf("line = %q", l)
		}
	}
}
