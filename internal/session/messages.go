package session

import (
	"encoding/json"

	"github.com/ManishG04/Convex/internal/protocol"
	"github.com/ManishG04/Convex/internal/room"
)

type Msg interface{ isMsg() }

// Join registers a connection in a room, creating the room on demand.
// Outbox is where the connection wants its events delivered; the
// coordinator owns the channel from here on and closes it when the
// connection leaves, is dropped, or the coordinator shuts down.
type Join struct {
	Code      string
	ConnID    string
	Username  string
	AvatarURL string
	Outbox    chan protocol.ServerMessage
}

func (Join) isMsg() {}

// Leave removes a connection from a room. Sending it for a room the
// connection never joined is a no-op, so disconnect cleanup can reuse it
// blindly.
type Leave struct {
	Code   string
	ConnID string
}

func (Leave) isMsg() {}

// StartTimer arms the room timer for the phase's fixed duration. Ignored
// unless ConnID is the host.
type StartTimer struct {
	Code   string
	ConnID string
	Phase  room.Phase
}

func (StartTimer) isMsg() {}

// StopTimer clears the room timer. Ignored unless ConnID is the host.
type StopTimer struct {
	Code   string
	ConnID string
}

func (StopTimer) isMsg() {}

// SetDistracted records a participant's own focus state and announces it
// to the whole room, sender included.
type SetDistracted struct {
	Code       string
	ConnID     string
	Distracted bool
}

func (SetDistracted) isMsg() {}

// RelayBlendShapes forwards opaque avatar pose data to everyone in the
// room except the sender.
type RelayBlendShapes struct {
	Code   string
	ConnID string
	Data   json.RawMessage
}

func (RelayBlendShapes) isMsg() {}

// timerFired is the deferred completion check. It carries the end instant
// it was armed for; the loop compares that against the room's current
// value and acts only when they still agree.
type timerFired struct {
	code        string
	expectedEnd int64
}

func (timerFired) isMsg() {}

// ViewRoom replies with a race-free copy of room state. Reply must be
// buffered.
type ViewRoom struct {
	Code  string
	Reply chan RoomView
}

func (ViewRoom) isMsg() {}

// Shutdown stops the loop and closes every outbox.
type Shutdown struct{}

func (Shutdown) isMsg() {}

// RoomView is the reply to ViewRoom.
type RoomView struct {
	Exists       bool
	Code         string
	Participants []room.Participant // copies, in join order
	HostID       string
	TimerEnd     int64 // unix ms, 0 when no timer armed
	Phase        room.Phase
	NumClients   int
}
