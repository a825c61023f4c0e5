// Package status serves health, metrics and the current view over HTTP.
//
// Routes:
//
//	GET  /health                   channel states; 503 when a channel failed
//	GET  /metrics                  Prometheus exposition (path configurable)
//	GET  /v1/leaderboard           latest leaderboard rows
//	POST /v1/leaderboard/refresh   ask the server to resend the leaderboard
//	GET  /v1/presence              online users
//	GET  /v1/notifications         recent notifications, newest first
package status
