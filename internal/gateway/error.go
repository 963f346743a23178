package gateway

import "github.com/gorilla/websocket"

// Fault enumerates the terminal conditions of a gateway connection. Every
// fault is fatal to its own connection only and maps to exactly one close
// code and human-readable reason.
type Fault int

const (
	// FaultClosed is a normal close from either side, including a lagged or
	// shut-down broadcast feed.
	FaultClosed Fault = iota
	// FaultInactive fires when no inbound frame arrives within the
	// heartbeat interval plus grace.
	FaultInactive
	// FaultUnsupportedMessageType covers binary and other non-text frames.
	FaultUnsupportedMessageType
	// FaultWebSocket is a transport-level read or write failure.
	FaultWebSocket
	// FaultUnknown is a catch-all for unexpected internal failures.
	FaultUnknown
	// FaultDecode covers malformed or unrecognized payloads.
	FaultDecode
	// FaultNotAuthenticated rejects operations requiring identification.
	FaultNotAuthenticated
	// FaultAuthenticationFail rejects an invalid identify token.
	FaultAuthenticationFail
	// FaultAlreadyAuthenticated rejects re-identification and duplicate sessions.
	FaultAlreadyAuthenticated
	// FaultRateLimited rejects clients sending too fast.
	FaultRateLimited
)

var _ error = FaultClosed

// Error implements the error interface; the text doubles as the close reason.
func (f Fault) Error() string {
	switch f {
	case FaultClosed:
		return "connection closed"
	case FaultInactive:
		return "inactive connection"
	case FaultUnsupportedMessageType:
		return "unsupported message type"
	case FaultWebSocket:
		return "websocket error"
	case FaultDecode:
		return "decode error"
	case FaultNotAuthenticated:
		return "not authenticated"
	case FaultAuthenticationFail:
		return "authentication failed"
	case FaultAlreadyAuthenticated:
		return "already authenticated"
	case FaultRateLimited:
		return "rate limited"
	default:
		return "unknown error"
	}
}

// CloseCode returns the WebSocket close code for the fault. Codes in the
// 4000-4008 private range carry protocol- and auth-level failures.
func (f Fault) CloseCode() int {
	switch f {
	case FaultClosed:
		return websocket.CloseNormalClosure
	case FaultInactive:
		return websocket.CloseGoingAway
	case FaultUnsupportedMessageType:
		return websocket.CloseUnsupportedData
	case FaultWebSocket:
		return 4000
	case FaultUnknown:
		return 4001
	case FaultDecode:
		return 4002
	case FaultNotAuthenticated:
		return 4003
	case FaultAuthenticationFail:
		return 4004
	case FaultAlreadyAuthenticated:
		return 4005
	case FaultRateLimited:
		return 4008
	default:
		return 4001
	}
}
