package session

import (
	"time"

	"github.com/ManishG04/Convex/internal/room"
)

// SessionSink receives timer lifecycle notifications: one SessionStarted
// per armed timer, one SessionEnded per stop, restart, completion, or
// room teardown. Implementations must not block; the coordinator calls
// these inline on its command loop.
type SessionSink interface {
	SessionStarted(code string, phase room.Phase, startedAt, endsAt time.Time, participants int)
	SessionEnded(code string, endedAt time.Time, completed bool)
}
