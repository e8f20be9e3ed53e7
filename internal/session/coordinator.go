// Package session runs the coordinator: a single goroutine that owns every
// room, its membership, and its timer. All commands from all connections
// funnel through one inbox and run to completion in arrival order, so no
// state is ever observed mid-mutation and no locks exist anywhere in the
// room path.
package session

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ManishG04/Convex/internal/metrics"
	"github.com/ManishG04/Convex/internal/protocol"
	"github.com/ManishG04/Convex/internal/registry"
	"github.com/ManishG04/Convex/internal/room"
)

const inboxSize = 64

// Options configures a Coordinator. Zero values work: real clock, no-op
// logger, no sink, silent rejections.
type Options struct {
	Clock  clockwork.Clock
	Logger *zap.Logger
	// Sink, when set, is told about every timer start and end.
	Sink SessionSink
	// RejectionEvents answers refused commands with an error event
	// instead of the default silent no-op.
	RejectionEvents bool
}

type Coordinator struct {
	inbox   chan Msg
	rooms   *registry.Registry
	clients map[string]map[string]chan protocol.ServerMessage // code -> conn -> outbox

	clock      clockwork.Clock
	log        *zap.Logger
	sink       SessionSink
	rejections bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New starts the coordinator loop. It stops when parent is canceled or a
// Shutdown message arrives.
func New(parent context.Context, opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(parent)
	c := &Coordinator{
		inbox:      make(chan Msg, inboxSize),
		rooms:      registry.New(),
		clients:    make(map[string]map[string]chan protocol.ServerMessage),
		clock:      opts.Clock,
		log:        opts.Logger,
		sink:       opts.Sink,
		rejections: opts.RejectionEvents,
		ctx:        ctx,
		cancel:     cancel,
	}
	go c.loop()
	return c
}

// Inbox is where the gateway (and tests) send commands.
func (c *Coordinator) Inbox() chan<- Msg { return c.inbox }

// Done closes once the loop has stopped. Messages sent after that are
// drained but never answered, so anyone waiting on a reply or an outbox
// should select on this too.
func (c *Coordinator) Done() <-chan struct{} { return c.ctx.Done() }

func (c *Coordinator) loop() {
	for {
		select {
		case <-c.ctx.Done():
			c.shutdown()
			return

		case m := <-c.inbox:
			switch msg := m.(type) {
			case Join:
				c.handleJoin(msg)

			case Leave:
				c.handleLeave(msg.Code, msg.ConnID, false)

			case StartTimer:
				c.handleStartTimer(msg)

			case StopTimer:
				c.handleStopTimer(msg)

			case SetDistracted:
				c.handleSetDistracted(msg)

			case RelayBlendShapes:
				c.handleBlendShapes(msg)

			case timerFired:
				c.handleTimerFired(msg)

			case ViewRoom:
				msg.Reply <- c.view(msg.Code)

			case Shutdown:
				c.shutdown()
				return
			}
		}
	}
}

func (c *Coordinator) handleJoin(msg Join) {
	rm, created := c.rooms.GetOrCreate(msg.Code)
	_, rejoin := rm.Participant(msg.ConnID)
	rm.Add(msg.ConnID, msg.Username, msg.AvatarURL)

	conns := c.clients[msg.Code]
	if conns == nil {
		conns = make(map[string]chan protocol.ServerMessage)
		c.clients[msg.Code] = conns
	}
	if old, ok := conns[msg.ConnID]; ok && old != msg.Outbox {
		close(old) // stale outbox from an earlier join on the same connection
	}
	conns[msg.ConnID] = msg.Outbox

	if created {
		metrics.RoomsActive.Set(float64(c.rooms.Len()))
	}
	if !rejoin {
		metrics.ParticipantsActive.Inc()
	}

	// Snapshot to the joiner, join notice to everyone else. The snapshot
	// send can itself drop the joiner as a slow client; a member that is
	// already gone again is never announced.
	c.send(msg.Code, msg.ConnID, protocol.ServerMessage{
		Event: protocol.EventRoomState,
		Data:  c.snapshot(rm),
	})
	if _, present := rm.Participant(msg.ConnID); !present {
		return
	}
	if !rejoin {
		c.broadcast(msg.Code, msg.ConnID, protocol.ServerMessage{
			Event: protocol.EventUserJoined,
			Data:  protocol.UserJoinedPayload{Username: msg.Username, AvatarURL: msg.AvatarURL},
		})
	}

	c.log.Info("participant joined",
		zap.String("room", msg.Code),
		zap.String("username", msg.Username),
		zap.String("conn", msg.ConnID),
		zap.Int("participants", rm.Len()),
	)
}

func (c *Coordinator) handleLeave(code, connID string, dropped bool) {
	rm := c.rooms.Get(code)
	if rm == nil {
		return
	}
	p, ok := rm.Remove(connID)
	if !ok {
		return
	}

	if conns := c.clients[code]; conns != nil {
		if out, ok := conns[connID]; ok {
			delete(conns, connID)
			close(out)
		}
		if len(conns) == 0 {
			delete(c.clients, code)
		}
	}

	metrics.ParticipantsActive.Dec()
	if dropped {
		metrics.ClientsDropped.Inc()
	}

	c.broadcast(code, "", protocol.ServerMessage{
		Event: protocol.EventUserLeft,
		Data:  protocol.UserLeftPayload{Username: p.Username},
	})

	if c.rooms.DeleteIfEmpty(code) {
		metrics.RoomsActive.Set(float64(c.rooms.Len()))
		// Any armed timer dies with the room; completion checks for it
		// will find nothing. The session log still gets its end record.
		if _, armed := rm.TimerEnd(); armed && c.sink != nil {
			c.sink.SessionEnded(code, c.clock.Now(), false)
		}
		c.log.Info("room deleted", zap.String("room", code))
		return
	}

	c.log.Info("participant left",
		zap.String("room", code),
		zap.String("username", p.Username),
		zap.String("host", rm.Host()),
	)
}

func (c *Coordinator) handleStartTimer(msg StartTimer) {
	rm := c.rooms.Get(msg.Code)
	if rm == nil {
		c.reject(msg.Code, msg.ConnID, protocol.ErrUnknownRoom, "room does not exist")
		return
	}
	if rm.Host() != msg.ConnID {
		c.log.Debug("timer start from non-host ignored",
			zap.String("room", msg.Code), zap.String("conn", msg.ConnID))
		c.reject(msg.Code, msg.ConnID, protocol.ErrNotHost, "only the host can start the timer")
		return
	}

	phase := msg.Phase
	if !room.ValidPhase(phase) {
		phase = room.PhaseFocus
	}
	dur := room.DurationFor(phase)

	// A restart supersedes the running session before the new one opens.
	if _, armed := rm.TimerEnd(); armed && c.sink != nil {
		c.sink.SessionEnded(msg.Code, c.clock.Now(), false)
	}

	now := c.clock.Now()
	end := now.Add(dur)
	rm.StartTimer(end, phase)

	// Schedule before announcing: anyone who saw timer:started can rely on
	// the completion check being armed.
	c.scheduleCompletion(msg.Code, end.UnixMilli(), dur)
	c.broadcast(msg.Code, "", protocol.ServerMessage{
		Event: protocol.EventTimerStarted,
		Data: protocol.TimerStartedPayload{
			EndTime:      end.UnixMilli(),
			Phase:        phase,
			DurationMins: int(dur / time.Minute),
		},
	})

	metrics.TimersStarted.WithLabelValues(string(phase)).Inc()
	if c.sink != nil {
		c.sink.SessionStarted(msg.Code, phase, now, end, rm.Len())
	}

	c.log.Info("timer started",
		zap.String("room", msg.Code),
		zap.String("phase", string(phase)),
		zap.Int64("end_ms", end.UnixMilli()),
	)
}

func (c *Coordinator) handleStopTimer(msg StopTimer) {
	rm := c.rooms.Get(msg.Code)
	if rm == nil {
		c.reject(msg.Code, msg.ConnID, protocol.ErrUnknownRoom, "room does not exist")
		return
	}
	if rm.Host() != msg.ConnID {
		c.log.Debug("timer stop from non-host ignored",
			zap.String("room", msg.Code), zap.String("conn", msg.ConnID))
		c.reject(msg.Code, msg.ConnID, protocol.ErrNotHost, "only the host can stop the timer")
		return
	}

	_, wasArmed := rm.TimerEnd()
	rm.StopTimer()

	// Stop is broadcast even when no timer was running; clients treat it
	// as idempotent.
	c.broadcast(msg.Code, "", protocol.ServerMessage{Event: protocol.EventTimerStopped})

	if wasArmed {
		metrics.TimersStopped.Inc()
		if c.sink != nil {
			c.sink.SessionEnded(msg.Code, c.clock.Now(), false)
		}
	}

	c.log.Info("timer stopped", zap.String("room", msg.Code))
}

func (c *Coordinator) handleTimerFired(msg timerFired) {
	rm := c.rooms.Get(msg.code)
	if rm == nil {
		return // room emptied out before the timer came due
	}
	end, armed := rm.TimerEnd()
	if !armed || end.UnixMilli() != msg.expectedEnd {
		// A stop or restart superseded this schedule.
		c.log.Debug("stale timer completion dropped", zap.String("room", msg.code))
		return
	}

	rm.StopTimer()
	c.broadcast(msg.code, "", protocol.ServerMessage{Event: protocol.EventTimerEnded})

	metrics.TimersCompleted.Inc()
	if c.sink != nil {
		c.sink.SessionEnded(msg.code, c.clock.Now(), true)
	}

	c.log.Info("timer ended",
		zap.String("room", msg.code),
		zap.String("phase", string(rm.Phase())),
	)
}

func (c *Coordinator) handleSetDistracted(msg SetDistracted) {
	rm := c.rooms.Get(msg.Code)
	if rm == nil {
		return
	}
	p, ok := rm.SetDistracted(msg.ConnID, msg.Distracted)
	if !ok {
		return // status update raced a leave; not an error
	}

	c.broadcast(msg.Code, "", protocol.ServerMessage{
		Event: protocol.EventUserStatusChanged,
		Data:  protocol.StatusChangedPayload{Username: p.Username, IsDistracted: p.IsDistracted},
	})

	c.log.Debug("status changed",
		zap.String("room", msg.Code),
		zap.String("username", p.Username),
		zap.Bool("distracted", p.IsDistracted),
	)
}

func (c *Coordinator) handleBlendShapes(msg RelayBlendShapes) {
	rm := c.rooms.Get(msg.Code)
	if rm == nil {
		return
	}
	p, ok := rm.Participant(msg.ConnID)
	if !ok {
		return
	}
	// High frequency; relayed verbatim, never logged.
	c.broadcast(msg.Code, msg.ConnID, protocol.ServerMessage{
		Event: protocol.EventBlendShapesUpdate,
		Data:  protocol.BlendShapesUpdatePayload{Username: p.Username, BlendShapes: msg.Data},
	})
}

// scheduleCompletion arms the deferred completion check. The timer always
// fires; handleTimerFired decides then whether it is still current, so
// stops and restarts never have to hunt down a pending schedule.
func (c *Coordinator) scheduleCompletion(code string, expectedEnd int64, d time.Duration) {
	t := c.clock.NewTimer(d)
	go func() {
		defer t.Stop()
		select {
		case <-t.Chan():
			select {
			case c.inbox <- timerFired{code: code, expectedEnd: expectedEnd}:
			case <-c.ctx.Done():
			}
		case <-c.ctx.Done():
		}
	}()
}

func (c *Coordinator) snapshot(rm *room.Room) protocol.RoomStatePayload {
	parts := rm.Participants()
	infos := make([]protocol.ParticipantInfo, 0, len(parts))
	for _, p := range parts {
		infos = append(infos, protocol.ParticipantInfo{
			Username:     p.Username,
			IsDistracted: p.IsDistracted,
			AvatarURL:    p.AvatarURL,
		})
	}

	state := protocol.RoomStatePayload{Participants: infos, Phase: rm.Phase()}
	if end, armed := rm.TimerEnd(); armed {
		ms := end.UnixMilli()
		state.EndTime = &ms
		state.TimerRunning = end.After(c.clock.Now())
	}
	return state
}

// broadcast fans msg out to every connection in the room except skip
// (empty string skips nobody). A connection that cannot keep up is dropped
// through the normal leave path so membership and delivery never diverge.
func (c *Coordinator) broadcast(code, skip string, msg protocol.ServerMessage) {
	conns := c.clients[code]
	if len(conns) == 0 {
		return
	}

	var dropped []string
	for id, out := range conns {
		if id == skip {
			continue
		}
		select {
		case out <- msg:
			metrics.EventsSent.WithLabelValues(msg.Event).Inc()
		default:
			dropped = append(dropped, id)
		}
	}
	for _, id := range dropped {
		c.log.Warn("dropping slow client", zap.String("room", code), zap.String("conn", id))
		c.handleLeave(code, id, true)
	}
}

// send delivers to a single connection, with the same slow-client rule as
// broadcast.
func (c *Coordinator) send(code, connID string, msg protocol.ServerMessage) {
	out, ok := c.clients[code][connID]
	if !ok {
		return
	}
	select {
	case out <- msg:
		metrics.EventsSent.WithLabelValues(msg.Event).Inc()
	default:
		c.log.Warn("dropping slow client", zap.String("room", code), zap.String("conn", connID))
		c.handleLeave(code, connID, true)
	}
}

// reject answers a refused command when rejection events are enabled.
// Default behavior is silence.
func (c *Coordinator) reject(code, connID, errCode, message string) {
	if !c.rejections {
		return
	}
	c.send(code, connID, protocol.ServerMessage{
		Event: protocol.EventError,
		Data:  protocol.ErrorPayload{Code: errCode, Message: message},
	})
}

func (c *Coordinator) view(code string) RoomView {
	rm := c.rooms.Get(code)
	if rm == nil {
		return RoomView{Code: code}
	}

	v := RoomView{
		Exists:     true,
		Code:       rm.Code(),
		HostID:     rm.Host(),
		Phase:      rm.Phase(),
		NumClients: len(c.clients[code]),
	}
	if end, armed := rm.TimerEnd(); armed {
		v.TimerEnd = end.UnixMilli()
	}
	for _, p := range rm.Participants() {
		v.Participants = append(v.Participants, *p)
	}
	return v
}

func (c *Coordinator) shutdown() {
	for code, conns := range c.clients {
		for id, out := range conns {
			close(out)
			delete(conns, id)
		}
		delete(c.clients, code)
	}
	c.cancel()
	// Unblock anything still sending during teardown.
	go func() {
		for range c.inbox {
		}
	}()
}
