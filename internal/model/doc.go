// Package model defines the wire types exchanged on the realtime channels.
//
// Every frame is a JSON object with a "type" tag; the remaining fields sit
// beside the tag and depend on it.
//
// Conventions:
//   - Tags and notification kinds are plain strings, unknown values are legal
//   - User and sidequest IDs accept JSON strings or numbers (see ID)
//   - Outbound control messages carry an "action" field
package model
