package view

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/rickgao/realtime-client/internal/feed"
	"github.com/rickgao/realtime-client/internal/model"
)

var _ feed.Sink = (*Board)(nil)

func TestBoard_LeaderboardReplaces(t *testing.T) {
	b := NewBoard()

	b.Render(model.TagLeaderboardUpdate, []model.PlayerRow{
		{Rank: 1, Username: "ana"},
		{Rank: 2, Username: "bo"},
	})
	b.Render(model.TagLeaderboardUpdate, []model.PlayerRow{
		{Rank: 1, Username: "cy", Level: 3},
	})

	want := []model.PlayerRow{{Rank: 1, Username: "cy", Level: 3}}
	if got := b.Leaderboard(); !reflect.DeepEqual(got, want) {
		t.Errorf("Leaderboard() = %+v, want %+v", got, want)
	}
}

func TestBoard_Presence(t *testing.T) {
	b := NewBoard()

	b.Render(model.TagOnlineUsers, []model.UserSummary{
		{ID: "1", Username: "ana"},
		{ID: "2", Username: "bo"},
	})
	b.Render(model.TagUserStatus, model.UserStatus{UserID: "3", Username: "cy", Status: model.StatusOnline})
	b.Render(model.TagUserStatus, model.UserStatus{UserID: "1", Username: "ana", Status: model.StatusOffline})

	want := []Presence{
		{ID: "2", Username: "bo"},
		{ID: "3", Username: "cy"},
	}
	if got := b.Online(); !reflect.DeepEqual(got, want) {
		t.Errorf("Online() = %+v, want %+v", got, want)
	}
	if b.IsOnline("1") {
		t.Error("user 1 should be offline")
	}

	// A full list replaces everything.
	b.Render(model.TagOnlineUsers, []model.UserSummary{{ID: "9", Username: "zed"}})
	if got := b.Online(); len(got) != 1 || got[0].ID != "9" {
		t.Errorf("Online() = %+v, want only 9", got)
	}
}

func TestBoard_Notifications(t *testing.T) {
	b := NewBoard(WithNotificationLimit(3))
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	for i := 1; i <= 4; i++ {
		b.Render(model.TagNotification, model.Notification{Kind: model.KindInfo, Message: fmt.Sprintf("n%d", i)})
	}

	got := b.Notifications()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []string{"n4", "n3", "n2"} {
		if got[i].Message != want {
			t.Errorf("[%d] = %q, want %q", i, got[i].Message, want)
		}
	}
	if !got[0].ReceivedAt.Equal(now) {
		t.Errorf("ReceivedAt = %v, want %v", got[0].ReceivedAt, now)
	}
}

func TestBoard_FollowUps(t *testing.T) {
	b := NewBoard()

	if _, ok := b.LastLevelUp(); ok {
		t.Error("LastLevelUp() on empty board should be false")
	}

	b.Render(model.TagNotification, model.Notification{
		Kind:     model.KindLevelUp,
		Message:  "Level 5!",
		FollowUp: model.LevelUp{OldLevel: 4, NewLevel: 5},
	})
	b.Render(model.TagNotification, model.Notification{
		Kind:     model.KindSidequest,
		Message:  "New quest",
		FollowUp: model.Sidequest{ID: "17", Title: "Refactor"},
	})

	lu, ok := b.LastLevelUp()
	if !ok || lu.NewLevel != 5 {
		t.Errorf("LastLevelUp() = %+v, %v", lu, ok)
	}
	if got := b.Sidequests(); len(got) != 1 || got[0].Title != "Refactor" {
		t.Errorf("Sidequests() = %+v", got)
	}
	if link := b.Notifications()[0].Link; link != "/sidequests/17/submit/" {
		t.Errorf("Link = %q", link)
	}
}

func TestBoard_IgnoresUnexpectedPayload(t *testing.T) {
	b := NewBoard()
	b.Render("mystery", 42)

	if got := b.Renders(); len(got) != 0 {
		t.Errorf("Renders() = %v, want empty", got)
	}

	b.Render(model.TagLeaderboardUpdate, []model.PlayerRow{})
	if got := b.Renders()[model.TagLeaderboardUpdate]; got != 1 {
		t.Errorf("renders = %d, want 1", got)
	}
}
