// Package protocol defines the JSON wire contract between clients and the
// server: the envelope, event names, and payload shapes.
package protocol

// Client to server.
const (
	EventRoomJoin       = "room:join"
	EventRoomLeave      = "room:leave"
	EventTimerStart     = "timer:start"
	EventTimerStop      = "timer:stop"
	EventUserDistracted = "user:distracted"
	EventUserFocused    = "user:focused"
	EventBlendShapes    = "avatar:blend-shapes"
)

// Server to client.
const (
	EventRoomState         = "room:state"
	EventUserJoined        = "user:joined"
	EventUserLeft          = "user:left"
	EventUserStatusChanged = "user:status-changed"
	EventTimerStarted      = "timer:started"
	EventTimerStopped      = "timer:stopped"
	EventTimerEnded        = "timer:ended"
	EventBlendShapesUpdate = "avatar:blend-shapes-update"
	EventError             = "error"
)

// Error codes carried by EventError payloads.
const (
	ErrBadPayload   = "bad_payload"
	ErrUnknownEvent = "unknown_event"
	ErrNotInRoom    = "not_in_room"
	ErrNotHost      = "not_host"
	ErrUnknownRoom  = "unknown_room"
)
