package gateway

import (
	"testing"

	"github.com/gorilla/websocket"
)

func TestFault_CloseCodes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		fault Fault
		code  int
	}{
		{FaultClosed, websocket.CloseNormalClosure},
		{FaultInactive, websocket.CloseGoingAway},
		{FaultUnsupportedMessageType, websocket.CloseUnsupportedData},
		{FaultWebSocket, 4000},
		{FaultUnknown, 4001},
		{FaultDecode, 4002},
		{FaultNotAuthenticated, 4003},
		{FaultAuthenticationFail, 4004},
		{FaultAlreadyAuthenticated, 4005},
		{FaultRateLimited, 4008},
	}
	for _, c := range cases {
		if got := c.fault.CloseCode(); got != c.code {
			t.Fatalf("%v: code = %d, want %d", c.fault, got, c.code)
		}
	}
}

func TestFault_ReasonsAreDistinct(t *testing.T) {
	t.Parallel()

	faults := []Fault{
		FaultClosed, FaultInactive, FaultUnsupportedMessageType, FaultWebSocket,
		FaultUnknown, FaultDecode, FaultNotAuthenticated, FaultAuthenticationFail,
		FaultAlreadyAuthenticated, FaultRateLimited,
	}
	seen := map[string]Fault{}
	for _, f := range faults {
		reason := f.Error()
		if reason == "" {
			t.Fatalf("%d: empty reason", f)
		}
		if prev, dup := seen[reason]; dup {
			t.Fatalf("reason %q shared by %v and %v", reason, prev, f)
		}
		seen[reason] = f
	}
}
