// Package transport implements the WebSocket connection used by a channel.
//
// A Client wraps one physical gorilla/websocket connection:
//   - Text frames are delivered on Messages()
//   - The first read failure or heartbeat timeout is delivered on Errors()
//   - Send serializes writes and applies a write deadline
//
// A Client is single use. Reconnecting means dialing a new Client.
package transport
