// Package poller implements the periodic resync.
//
// Pushes can be missed while a channel is down or if the server drops a
// broadcast. The poller periodically asks open channels to resend their full
// state:
//   - leaderboard: {"action":"refresh"}
//   - presence:    {"action":"get_online_users"}
//
// Channels that are not open are skipped, so requests never pile up in the
// pending queue of a reconnecting or failed channel.
package poller
