package feed

// Sink renders decoded payloads. The payload type depends on the tag:
//
//	notification        model.Notification
//	leaderboard_update  []model.PlayerRow
//	online_users        []model.UserSummary
//	user_status         model.UserStatus
//
// Render is called from the owning channel's goroutine, so calls for one
// channel never overlap. Different channels may call concurrently.
type Sink interface {
	Render(tag string, payload any)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(tag string, payload any)

// Render calls f.
func (f SinkFunc) Render(tag string, payload any) {
	f(tag, payload)
}

// Discard drops everything.
var Discard Sink = SinkFunc(func(string, any) {})
