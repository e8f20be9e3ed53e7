// Package registry is the process-wide directory of live rooms. A room
// exists exactly while it has participants: created on first join, removed
// on last leave. The registry is not safe for concurrent use; the session
// coordinator is its only caller and serializes access.
package registry

import "github.com/ManishG04/Convex/internal/room"

type Registry struct {
	rooms map[string]*room.Room
}

func New() *Registry {
	return &Registry{rooms: make(map[string]*room.Room)}
}

// GetOrCreate returns the room for code, creating a fresh one when absent,
// and reports whether it was created. Never fails: any code is a valid
// room waiting to happen.
func (g *Registry) GetOrCreate(code string) (*room.Room, bool) {
	if rm, ok := g.rooms[code]; ok {
		return rm, false
	}
	rm := room.New(code)
	g.rooms[code] = rm
	return rm, true
}

// Get is a pure lookup. Nil when no such room is live.
func (g *Registry) Get(code string) *room.Room {
	return g.rooms[code]
}

// DeleteIfEmpty removes the room iff it has no participants left and
// reports whether it did. Called after every membership removal.
func (g *Registry) DeleteIfEmpty(code string) bool {
	rm, ok := g.rooms[code]
	if !ok || !rm.IsEmpty() {
		return false
	}
	delete(g.rooms, code)
	return true
}

// Len returns the number of live rooms.
func (g *Registry) Len() int {
	return len(g.rooms)
}
