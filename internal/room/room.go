// Package room holds the per-room state machine: ordered membership, host
// succession, and the phase timer. It is plain data with no locking; all
// mutation is serialized by the session coordinator.
package room

import "time"

// Phase is the timer mode. Each phase maps to a fixed duration; the server
// never accepts client-supplied durations.
type Phase string

const (
	PhaseFocus Phase = "focus"
	PhaseBreak Phase = "break"
)

// Fixed phase durations.
const (
	FocusDuration = 25 * time.Minute
	BreakDuration = 5 * time.Minute
)

// DurationFor maps a phase to its fixed duration. Unknown phases fall back
// to focus.
func DurationFor(p Phase) time.Duration {
	if p == PhaseBreak {
		return BreakDuration
	}
	return FocusDuration
}

// ValidPhase reports whether p names a known timer phase.
func ValidPhase(p Phase) bool {
	return p == PhaseFocus || p == PhaseBreak
}

// Participant is one connection's membership in a room.
type Participant struct {
	ID           string // connection identity, assigned by the gateway
	Username     string
	AvatarURL    string
	IsDistracted bool
}

// Room tracks who is in a focus room and whether its shared timer is
// running. Join order is preserved because it drives host succession.
type Room struct {
	code     string
	order    []string
	byID     map[string]*Participant
	host     string
	timerEnd time.Time // zero means no timer armed
	phase    Phase
}

// New returns an empty room in the focus phase with no host and no timer.
func New(code string) *Room {
	return &Room{
		code:  code,
		byID:  make(map[string]*Participant),
		phase: PhaseFocus,
	}
}

// Code returns the room's identity.
func (r *Room) Code() string { return r.code }

// Add inserts a participant. The first participant becomes host. Adding an
// id that is already a member updates its username and avatar in place and
// keeps its original join position.
func (r *Room) Add(id, username, avatarURL string) *Participant {
	if p, ok := r.byID[id]; ok {
		p.Username = username
		p.AvatarURL = avatarURL
		return p
	}
	p := &Participant{ID: id, Username: username, AvatarURL: avatarURL}
	r.byID[id] = p
	r.order = append(r.order, id)
	if r.host == "" {
		r.host = id
	}
	return p
}

// Remove deletes a participant and reports whether it was a member. When
// the host leaves, the earliest remaining joiner inherits the room.
func (r *Room) Remove(id string) (*Participant, bool) {
	p, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	delete(r.byID, id)
	for i, other := range r.order {
		if other == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.host == id {
		r.host = ""
		if len(r.order) > 0 {
			r.host = r.order[0]
		}
	}
	return p, true
}

// Participant looks up a member by connection id.
func (r *Room) Participant(id string) (*Participant, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// SetDistracted flips a member's distraction flag. Unknown ids report
// false so a status update racing a leave stays a no-op.
func (r *Room) SetDistracted(id string, distracted bool) (*Participant, bool) {
	p, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	p.IsDistracted = distracted
	return p, true
}

// Participants returns the members in join order.
func (r *Room) Participants() []*Participant {
	out := make([]*Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Host returns the connection id of the current host, or "" when empty.
func (r *Room) Host() string { return r.host }

// Len returns the participant count.
func (r *Room) Len() int { return len(r.byID) }

// IsEmpty reports whether the room has no participants.
func (r *Room) IsEmpty() bool { return len(r.byID) == 0 }

// StartTimer stamps a new end instant and phase. Starting over a running
// timer just overwrites; the superseded schedule is the coordinator's
// problem, not the room's.
func (r *Room) StartTimer(end time.Time, phase Phase) {
	r.timerEnd = end
	r.phase = phase
}

// StopTimer clears the end instant. The phase survives so a later snapshot
// still shows what was last running.
func (r *Room) StopTimer() {
	r.timerEnd = time.Time{}
}

// TimerEnd returns the armed end instant, if any.
func (r *Room) TimerEnd() (time.Time, bool) {
	return r.timerEnd, !r.timerEnd.IsZero()
}

// Phase returns the current (or most recent) timer phase.
func (r *Room) Phase() Phase { return r.phase }
