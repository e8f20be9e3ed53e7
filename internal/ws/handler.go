// Package ws bridges websocket connections to the session coordinator.
// Each connection gets a read loop that turns inbound envelopes into
// coordinator commands, and a writer goroutine per joined room that drains
// the outbox the coordinator delivers into.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ManishG04/Convex/internal/config"
	"github.com/ManishG04/Convex/internal/metrics"
	"github.com/ManishG04/Convex/internal/protocol"
	"github.com/ManishG04/Convex/internal/room"
	"github.com/ManishG04/Convex/internal/session"
)

const (
	writeTimeout = 5 * time.Second
	outboxSize   = 32
)

// Ping cadence for dead-peer detection. Reads carry no deadline (a silent
// focus phase runs 25 minutes), so an unanswered ping is the only way to
// notice a transport that died without closing. Vars so tests can shrink
// them.
var (
	pingInterval = 20 * time.Second
	pingTimeout  = 10 * time.Second
)

// Handler upgrades requests and runs the connection until it drops. Reads
// are bounded only by the connection's lifetime; focus timers run for
// minutes with no client traffic in between, so liveness comes from
// interval pings rather than read deadlines.
func Handler(coord *session.Coordinator, cfg *config.Config, logger *zap.Logger) http.HandlerFunc {
	patterns := originPatterns(cfg.AllowedOrigins)
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: patterns,
		})
		if err != nil {
			logger.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.CloseNow()

		connID := uuid.NewString()
		metrics.ConnectionsActive.Inc()
		defer metrics.ConnectionsActive.Dec()

		g := &gateway{
			conn:   conn,
			coord:  coord,
			cfg:    cfg,
			log:    logger.With(zap.String("conn", connID)),
			connID: connID,
			ctx:    r.Context(),
		}
		g.log.Debug("connection open")
		g.run()
		g.log.Debug("connection closed")

		conn.Close(websocket.StatusNormalClosure, "bye")
	}
}

// gateway is the per-connection state. A connection occupies at most one
// room at a time; member, outbox, and writerDone all describe the current
// membership and are nil between rooms.
type gateway struct {
	conn   *websocket.Conn
	coord  *session.Coordinator
	cfg    *config.Config
	log    *zap.Logger
	connID string
	ctx    context.Context

	member     *membership
	outbox     chan protocol.ServerMessage
	writerDone chan struct{}
}

type membership struct {
	code     string
	username string
}

func (g *gateway) run() {
	// Whatever ends the read loop, the room hears about it exactly once.
	defer g.leaveCurrent()

	go g.keepalive()

	for {
		_, data, err := g.conn.Read(g.ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				g.log.Debug("connection lost", zap.Error(err))
			}
			return
		}

		var msg protocol.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			g.sendError(protocol.ErrBadPayload, "malformed JSON")
			continue
		}
		g.dispatch(msg)
	}
}

func (g *gateway) dispatch(msg protocol.ClientMessage) {
	switch msg.Event {
	case protocol.EventRoomJoin:
		g.handleJoin(msg.Data)

	case protocol.EventRoomLeave:
		g.handleLeave(msg.Data)

	case protocol.EventTimerStart:
		g.handleTimerStart(msg.Data)

	case protocol.EventTimerStop:
		if m := g.requireMembership(); m != nil {
			g.coord.Inbox() <- session.StopTimer{Code: m.code, ConnID: g.connID}
		}

	case protocol.EventUserDistracted:
		if m := g.requireMembership(); m != nil {
			g.coord.Inbox() <- session.SetDistracted{Code: m.code, ConnID: g.connID, Distracted: true}
		}

	case protocol.EventUserFocused:
		if m := g.requireMembership(); m != nil {
			g.coord.Inbox() <- session.SetDistracted{Code: m.code, ConnID: g.connID, Distracted: false}
		}

	case protocol.EventBlendShapes:
		if m := g.requireMembership(); m != nil {
			g.coord.Inbox() <- session.RelayBlendShapes{Code: m.code, ConnID: g.connID, Data: msg.Data}
		}

	default:
		g.sendError(protocol.ErrUnknownEvent, "unknown event: "+msg.Event)
	}
}

func (g *gateway) handleJoin(data []byte) {
	var p protocol.JoinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		g.sendError(protocol.ErrBadPayload, "invalid join payload")
		return
	}
	code := protocol.NormalizeRoomCode(p.RoomCode)
	username := strings.TrimSpace(p.Username)
	if code == "" || username == "" {
		g.sendError(protocol.ErrBadPayload, "roomCode and username are required")
		return
	}

	// Re-joining the current room updates the profile in place with a fresh
	// snapshot and no membership churn. Switching rooms leaves the old one
	// through the same path a disconnect would take.
	rejoin := g.member != nil && g.member.code == code
	if !rejoin {
		g.leaveCurrent()
	}

	prevDone := g.writerDone
	g.outbox = make(chan protocol.ServerMessage, outboxSize)

	g.coord.Inbox() <- session.Join{
		Code:      code,
		ConnID:    g.connID,
		Username:  username,
		AvatarURL: p.AvatarURL,
		Outbox:    g.outbox,
	}
	if prevDone != nil {
		// The coordinator retires the superseded outbox while handling the
		// join; let its writer flush before the new one starts.
		<-prevDone
	}
	g.writerDone = make(chan struct{})
	go g.writer(g.outbox, g.writerDone)

	g.member = &membership{code: code, username: username}
}

func (g *gateway) handleLeave(data []byte) {
	var p protocol.LeavePayload
	if err := json.Unmarshal(data, &p); err != nil {
		g.sendError(protocol.ErrBadPayload, "invalid leave payload")
		return
	}
	code := protocol.NormalizeRoomCode(p.RoomCode)
	if code == "" {
		g.sendError(protocol.ErrBadPayload, "roomCode is required")
		return
	}

	g.coord.Inbox() <- session.Leave{Code: code, ConnID: g.connID}
	if g.member != nil && g.member.code == code {
		g.member = nil
		g.awaitWriter()
	}
}

func (g *gateway) handleTimerStart(data []byte) {
	m := g.requireMembership()
	if m == nil {
		return
	}

	phase := room.PhaseFocus
	if len(data) > 0 {
		var p protocol.TimerStartPayload
		if err := json.Unmarshal(data, &p); err != nil {
			g.sendError(protocol.ErrBadPayload, "invalid timer payload")
			return
		}
		if p.Phase != "" {
			phase = room.Phase(p.Phase)
			if !room.ValidPhase(phase) {
				g.sendError(protocol.ErrBadPayload, `phase must be "focus" or "break"`)
				return
			}
		}
	}

	g.coord.Inbox() <- session.StartTimer{Code: m.code, ConnID: g.connID, Phase: phase}
}

// requireMembership returns the current membership. Commands sent outside
// a room are answered per the rejection policy and otherwise dropped.
func (g *gateway) requireMembership() *membership {
	if g.member != nil {
		return g.member
	}
	if g.cfg.RejectionEvents {
		g.sendError(protocol.ErrNotInRoom, "join a room first")
	}
	return nil
}

// keepalive pings until the connection or the handler dies. Pongs are
// serviced by the read loop, which sits in Read whenever the peer is
// quiet; a peer whose host slept or whose NAT mapping expired answers
// nothing, and tearing the connection down routes cleanup through the
// read loop's normal leave path.
func (g *gateway) keepalive() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-g.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(g.ctx, pingTimeout)
			err := g.conn.Ping(ctx)
			cancel()
			if err != nil {
				g.log.Debug("keepalive ping failed", zap.Error(err))
				g.conn.CloseNow()
				return
			}
		}
	}
}

// leaveCurrent tells the coordinator this connection is gone from its
// room, if it was in one, and waits for the writer to wind down. Safe to
// call when nothing was joined.
func (g *gateway) leaveCurrent() {
	if g.member == nil {
		return
	}
	g.coord.Inbox() <- session.Leave{Code: g.member.code, ConnID: g.connID}
	g.member = nil
	g.awaitWriter()
}

// awaitWriter blocks until the current writer exits. The coordinator owns
// the outbox and closes it while processing the leave, so this resolves as
// soon as that command lands; a stopped coordinator resolves it through
// the writer's own exit.
func (g *gateway) awaitWriter() {
	if g.writerDone == nil {
		return
	}
	<-g.writerDone
	g.writerDone = nil
	g.outbox = nil
}

// writer drains one outbox onto the wire. It exits when the coordinator
// closes the channel (leave, drop, shutdown), or when the coordinator has
// stopped entirely and will never close an outbox it never saw. Write
// failures only log; the read side notices the dead transport and handles
// the leave.
func (g *gateway) writer(out <-chan protocol.ServerMessage, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case msg, ok := <-out:
			if !ok {
				return
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				g.log.Error("marshal outbound event", zap.Error(err), zap.String("event", msg.Event))
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err = g.conn.Write(ctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				g.log.Debug("write failed", zap.Error(err))
			}
		case <-g.coord.Done():
			return
		}
	}
}

// sendError answers a malformed or unknown envelope directly from the read
// loop. Concurrent with the writer; the connection serializes frames.
func (g *gateway) sendError(code, message string) {
	payload, err := json.Marshal(protocol.ServerMessage{
		Event: protocol.EventError,
		Data:  protocol.ErrorPayload{Code: code, Message: message},
	})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := g.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		g.log.Debug("error event write failed", zap.Error(err))
	}
}

// originPatterns converts configured origin URLs into the host patterns
// the accept check matches against.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, origin)
	}
	return patterns
}
