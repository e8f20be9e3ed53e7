package protocol

import (
	"encoding/json"
	"strings"

	"github.com/ManishG04/Convex/internal/room"
)

// ClientMessage is the inbound envelope. Data stays raw until the event
// name picks the payload shape.
type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerMessage is the outbound envelope.
type ServerMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// JoinPayload accompanies room:join.
type JoinPayload struct {
	RoomCode  string `json:"roomCode"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// LeavePayload accompanies room:leave.
type LeavePayload struct {
	RoomCode string `json:"roomCode"`
}

// TimerStartPayload accompanies timer:start. Phase is optional and
// defaults to focus; clients never send durations.
type TimerStartPayload struct {
	Phase string `json:"phase,omitempty"`
}

// ParticipantInfo is one row of a room snapshot.
type ParticipantInfo struct {
	Username     string `json:"username"`
	IsDistracted bool   `json:"isDistracted"`
	AvatarURL    string `json:"avatarUrl,omitempty"`
}

// RoomStatePayload is the full snapshot sent to a connection on join.
// EndTime is unix milliseconds, null when no timer is armed. TimerRunning
// is computed against the server clock at snapshot time.
type RoomStatePayload struct {
	Participants []ParticipantInfo `json:"participants"`
	TimerRunning bool              `json:"timerRunning"`
	EndTime      *int64            `json:"endTime"`
	Phase        room.Phase        `json:"phase"`
}

// UserJoinedPayload announces a new participant to the rest of the room.
type UserJoinedPayload struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// UserLeftPayload announces a departure to the remaining participants.
type UserLeftPayload struct {
	Username string `json:"username"`
}

// StatusChangedPayload carries a distraction flip to the whole room,
// sender included.
type StatusChangedPayload struct {
	Username     string `json:"username"`
	IsDistracted bool   `json:"isDistracted"`
}

// TimerStartedPayload announces a freshly armed timer. EndTime is unix
// milliseconds.
type TimerStartedPayload struct {
	EndTime      int64      `json:"endTime"`
	Phase        room.Phase `json:"phase"`
	DurationMins int        `json:"durationMins"`
}

// BlendShapesUpdatePayload relays avatar pose data to everyone but the
// sender. The server never looks inside BlendShapes.
type BlendShapesUpdatePayload struct {
	Username    string          `json:"username"`
	BlendShapes json.RawMessage `json:"blendShapes"`
}

// ErrorPayload accompanies EventError.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NormalizeRoomCode trims and upper-cases a client-supplied room code.
// Codes are case-insensitive on the wire; the registry only ever sees the
// normalized form.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
