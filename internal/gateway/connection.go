package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hfdforum/backend/internal/model"
	"github.com/hfdforum/backend/internal/snowflake"
)

const (
	// HeartbeatInterval is announced in the HELLO packet; clients must send
	// a heartbeat at least this often.
	HeartbeatInterval = 27500 * time.Millisecond

	// inactivityGrace extends the heartbeat interval before a connection is
	// considered dead.
	inactivityGrace = 10 * time.Second

	// writeWait bounds a single outbound write.
	writeWait = 10 * time.Second

	// maxMessageSize bounds inbound frames; identify is the largest client
	// payload and fits comfortably.
	maxMessageSize = 4096
)

// TokenVerifier is the auth collaborator consumed at identify time.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (model.User, model.Session, error)
}

// Config overrides protocol timing, used by tests to avoid multi-second
// waits. Zero values fall back to the production constants.
type Config struct {
	Heartbeat time.Duration
	Grace     time.Duration
}

// Conn owns one WebSocket session and runs the identify/heartbeat/dispatch
// protocol. A connection is Pending until a successful identify binds a
// user, and Terminated once its loop returns; there is no way back.
type Conn struct {
	ws        *websocket.Conn
	auth      TokenVerifier
	registry  *Registry
	bus       *Dispatcher
	log       *zap.Logger
	sessionID string
	heartbeat time.Duration
	grace     time.Duration

	// user is nil while Pending; set exactly once at identify.
	user *model.User
	// threadID is the optional thread subscription matched against
	// thread-targeted deliveries. Zero means not subscribed.
	threadID snowflake.ID
}

// NewConn wraps an upgraded socket. The registry and bus handles are passed
// in explicitly so tests can run isolated instances.
func NewConn(ws *websocket.Conn, auth TokenVerifier, registry *Registry, bus *Dispatcher, log *zap.Logger, cfg Config) *Conn {
	if cfg.Heartbeat == 0 {
		cfg.Heartbeat = HeartbeatInterval
	}
	if cfg.Grace == 0 {
		cfg.Grace = inactivityGrace
	}
	return &Conn{
		ws:        ws,
		auth:      auth,
		registry:  registry,
		bus:       bus,
		log:       log,
		sessionID: uuid.Must(uuid.NewV4()).String(),
		heartbeat: cfg.Heartbeat,
		grace:     cfg.Grace,
	}
}

// inboundFrame is what the reader goroutine hands to the event loop: either
// a text payload or the fault that ended reading.
type inboundFrame struct {
	data   []byte
	fault  Fault
	failed bool
}

// Run drives the connection until a terminal fault, then deregisters,
// reports the fault to the client as a close frame (best-effort) and drops
// the socket. Errors never propagate beyond this connection.
func (c *Conn) Run(ctx context.Context) {
	err := c.loop(ctx)

	fault := FaultUnknown
	if !errors.As(err, &fault) {
		c.log.Error("gateway loop failed", zap.String("session", c.sessionID), zap.Error(err))
	}

	// Deregister before the socket is torn down so the registry never holds
	// a dead handle for an "online" user.
	if c.user != nil {
		c.registry.Unregister(c.user.ID)
	}

	msg := websocket.FormatCloseMessage(fault.CloseCode(), fault.Error())
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = c.ws.Close()

	c.log.Debug("gateway connection closed",
		zap.String("session", c.sessionID),
		zap.Int("code", fault.CloseCode()),
		zap.String("reason", fault.Error()),
	)
}

// loop is the single-threaded event loop: it races the inactivity timer, the
// broadcast subscription and the next inbound frame, handling exactly one
// branch per iteration so outbound packets stay strictly ordered.
func (c *Conn) loop(ctx context.Context) error {
	if err := c.send(outboundPacket{Op: OpHello, Data: helloPayload{
		HeartbeatInterval: c.heartbeat.Milliseconds(),
	}}); err != nil {
		return err
	}

	sub := c.bus.Subscribe()
	defer sub.Close()

	done := make(chan struct{})
	defer close(done)

	c.ws.SetReadLimit(maxMessageSize)
	frames := make(chan inboundFrame)
	go c.readPump(frames, done)

	idle := c.heartbeat + c.grace
	timer := time.NewTimer(idle)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return FaultClosed

		case <-timer.C:
			return FaultInactive

		case d, ok := <-sub.C:
			if !ok {
				// lagged or bus shut down; a stale feed is worse than a drop
				return FaultClosed
			}
			if err := c.deliver(d); err != nil {
				return err
			}

		case f := <-frames:
			if f.failed {
				return f.fault
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(idle)
			if err := c.handle(ctx, f.data); err != nil {
				return err
			}
		}
	}
}

// readPump feeds inbound frames to the loop. It exits on the first read
// failure or non-text frame, reporting the fault in-band.
func (c *Conn) readPump(frames chan<- inboundFrame, done <-chan struct{}) {
	for {
		mt, data, err := c.ws.ReadMessage()

		var out inboundFrame
		switch {
		case err != nil:
			fault := FaultWebSocket
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				fault = FaultClosed
			}
			out = inboundFrame{fault: fault, failed: true}
		case mt != websocket.TextMessage:
			out = inboundFrame{fault: FaultUnsupportedMessageType, failed: true}
		default:
			out = inboundFrame{data: data}
		}

		select {
		case frames <- out:
		case <-done:
			return
		}
		if out.failed {
			return
		}
	}
}

// handle processes one client packet.
func (c *Conn) handle(ctx context.Context, data []byte) error {
	var pkt inboundPacket
	if err := json.Unmarshal(data, &pkt); err != nil {
		return FaultDecode
	}

	switch pkt.Op {
	case OpIdentify:
		var p identifyPayload
		if err := json.Unmarshal(pkt.Data, &p); err != nil {
			return FaultDecode
		}
		return c.identify(ctx, p.Token)

	case OpHeartbeat:
		return c.send(outboundPacket{Op: OpHeartbeatAck})

	default:
		return FaultDecode
	}
}

// identify authenticates the connection. The duplicate-session check runs
// after token verification so a failed login never reveals who is online.
func (c *Conn) identify(ctx context.Context, tok string) error {
	if c.user != nil {
		return FaultAlreadyAuthenticated
	}

	user, _, err := c.auth.VerifyToken(ctx, tok)
	if err != nil {
		return FaultAuthenticationFail
	}

	if err := c.registry.Register(user); err != nil {
		return FaultAlreadyAuthenticated
	}
	c.user = &user

	others := c.registry.Snapshot()
	delete(others, user.ID)

	c.log.Info("gateway identified",
		zap.String("session", c.sessionID),
		zap.String("user", user.ID.String()),
	)
	return c.sendEvent(Event{Tag: EventReady, Data: ReadyPayload{User: user, Users: others}})
}

// deliver filters one broadcast item against this connection's state. A
// Pending connection receives nothing; unmatched targets are dropped
// silently for this connection only.
func (c *Conn) deliver(d Delivery) error {
	if c.user == nil {
		return nil
	}
	switch d.Target.Kind {
	case TargetGlobal:
		return c.sendEvent(d.Event)
	case TargetUser:
		if d.Target.ID == c.user.ID {
			return c.sendEvent(d.Event)
		}
	case TargetThread:
		if c.threadID != 0 && d.Target.ID == c.threadID {
			return c.sendEvent(d.Event)
		}
	}
	return nil
}

// sendEvent wraps a domain event in the EVENT envelope.
func (c *Conn) sendEvent(e Event) error {
	return c.send(outboundPacket{Op: OpEvent, Tag: e.Tag, Data: e.Data})
}

// send marshals and writes one packet. Writes only ever happen from the
// event loop goroutine, one at a time.
func (c *Conn) send(p outboundPacket) error {
	data, err := json.Marshal(p)
	if err != nil {
		return FaultDecode
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return FaultClosed
	}
	return nil
}
