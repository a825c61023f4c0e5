// Package dispatch decodes inbound text frames and routes them by type tag.
//
// A frame must be a JSON object with a non-empty string "type". Frames that
// fail this check are reported as *MalformedFrameError. Frames whose tag has
// no registered handler are ignored without error, so the server can add new
// message types without breaking older clients. Handler errors and panics are
// reported as *HandlerFaultError and never escape as panics.
package dispatch
