// Package gateway implements the real-time WebSocket protocol: the
// per-connection state machine, the online-connection registry and the
// broadcast dispatcher that fans domain events out to live connections.
package gateway

import (
	"encoding/json"

	"github.com/hfdforum/backend/internal/model"
	"github.com/hfdforum/backend/internal/snowflake"
)

// Inbound opcodes.
const (
	OpIdentify  = "ID"
	OpHeartbeat = "HB"
)

// Outbound opcodes.
const (
	OpHello        = "HELLO"
	OpHeartbeatAck = "HEARTBEAT_ACK"
	OpEvent        = "EVENT"
)

// Event tags carried in the "a" field of EVENT packets.
const (
	EventReady             = "READY"
	EventThreadCreate      = "THREAD_CREATE"
	EventThreadUpdate      = "THREAD_UPDATE"
	EventThreadDelete      = "THREAD_DELETE"
	EventMessageCreate     = "MESSAGE_CREATE"
	EventMessageUpdate     = "MESSAGE_UPDATE"
	EventMessageDelete     = "MESSAGE_DELETE"
	EventThreadTypingStart = "THREAD_TYPING_START"
	EventThreadTypingStop  = "THREAD_TYPING_STOP"
	EventUserUpdate        = "USER_UPDATE"
)

// inboundPacket is the client envelope: {"op": "...", "d": ...}.
type inboundPacket struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"d"`
}

// identifyPayload carries the bearer token for the ID opcode.
type identifyPayload struct {
	Token string `json:"token"`
}

// outboundPacket is the server envelope. Control packets carry op and d;
// events additionally carry the tag in "a".
type outboundPacket struct {
	Op   string `json:"op"`
	Tag  string `json:"a,omitempty"`
	Data any    `json:"d,omitempty"`
}

// Event is a tagged domain notification published through the Dispatcher and
// forwarded to clients inside an EVENT envelope.
type Event struct {
	Tag  string
	Data any
}

// helloPayload announces the required heartbeat interval.
type helloPayload struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

// ReadyPayload is sent after successful identification: the authenticated
// user's own profile plus a snapshot of all other online users.
type ReadyPayload struct {
	User  model.User                  `json:"user"`
	Users map[snowflake.ID]model.User `json:"users"`
}

// ThreadDeletePayload identifies a removed thread.
type ThreadDeletePayload struct {
	ThreadID snowflake.ID `json:"thread_id"`
}

// MessageDeletePayload identifies a removed message.
type MessageDeletePayload struct {
	ThreadID  snowflake.ID `json:"thread_id"`
	MessageID snowflake.ID `json:"message_id"`
}

// TypingPayload identifies a typing start/stop notification.
type TypingPayload struct {
	ThreadID snowflake.ID `json:"thread_id"`
	UserID   snowflake.ID `json:"user_id"`
}

// TargetKind selects which connections receive a published event.
type TargetKind int

const (
	// TargetGlobal delivers to every authenticated connection.
	TargetGlobal TargetKind = iota
	// TargetUser delivers to the single connection authenticated as ID.
	TargetUser
	// TargetThread delivers to connections subscribed to thread ID.
	TargetThread
)

// Target is the routing scope of a published event.
type Target struct {
	Kind TargetKind
	ID   snowflake.ID
}

// Global targets all authenticated connections.
func Global() Target { return Target{Kind: TargetGlobal} }

// ToUser targets the connection authenticated as the given user.
func ToUser(id snowflake.ID) Target { return Target{Kind: TargetUser, ID: id} }

// ToThread targets connections subscribed to the given thread.
func ToThread(id snowflake.ID) Target { return Target{Kind: TargetThread, ID: id} }
