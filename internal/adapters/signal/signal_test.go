package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dkeye/callmatch/internal/adapters/rtc"
	"github.com/dkeye/callmatch/internal/app"
)

func newTestServer(t *testing.T) (*httptest.Server, *app.Switchboard) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ice, err := rtc.ICEServers(nil)
	if err != nil {
		t.Fatal(err)
	}
	sb := app.NewSwitchboard(app.Options{})
	ctl := NewSignalWSController(sb, Options{ICEServers: ice})

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set("client_token", c.Query("ct"))
		ctl.HandleSignal(context.Background(), c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, sb
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?ct=" + token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	if err := ws.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// expect reads until a message of type typ arrives, skipping others.
func expect(t *testing.T, ws *websocket.Conn, typ string) map[string]any {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("bad frame %s: %v", data, err)
		}
		if m["type"] == typ {
			return m
		}
	}
}

func registerWS(t *testing.T, srv *httptest.Server, pid, role, name string) *websocket.Conn {
	t.Helper()
	ws := dial(t, srv, "ct-"+pid)
	send(t, ws, map[string]any{"type": "register", "participantId": pid, "role": role, "displayName": name})
	m := expect(t, ws, "registered")
	if m["participantId"] != pid {
		t.Fatalf("registered as %v", m["participantId"])
	}
	return ws
}

func TestSignalHappyPath(t *testing.T) {
	srv, sb := newTestServer(t)

	u := registerWS(t, srv, "U1", "user", "Ann")
	th := registerWS(t, srv, "T1", "therapist", "Dr Bo")

	send(t, th, map[string]any{"type": "set-availability", "available": true})
	if m := expect(t, th, "availability"); m["count"] != float64(1) {
		t.Fatalf("availability reply = %v", m)
	}
	if m := expect(t, u, "availability-update"); m["available"] != float64(1) {
		t.Fatalf("broadcast = %v", m)
	}

	send(t, u, map[string]any{"type": "request-call"})
	cc := expect(t, u, "call-connecting")
	sid := cc["sessionId"].(string)
	if cc["calleeId"] != "T1" {
		t.Fatalf("call-connecting = %v", cc)
	}
	if m := expect(t, th, "incoming-call"); m["sessionId"] != sid || m["callerDisplayName"] != "Ann" {
		t.Fatalf("incoming-call = %v", m)
	}

	send(t, th, map[string]any{"type": "accept-call", "sessionId": sid})
	expect(t, th, "call-accepted")
	expect(t, u, "call-accepted")

	send(t, u, map[string]any{"type": "offer", "sessionId": sid, "payload": map[string]string{"sdp": "v=0"}})
	offer := expect(t, th, "offer")
	if offer["from"] != "U1" || offer["payload"].(map[string]any)["sdp"] != "v=0" {
		t.Fatalf("offer = %v", offer)
	}
	send(t, th, map[string]any{"type": "answer", "sessionId": sid, "payload": "opaque"})
	if m := expect(t, u, "answer"); m["payload"] != "opaque" {
		t.Fatalf("answer = %v", m)
	}

	send(t, u, map[string]any{"type": "end-call", "sessionId": sid})
	if m := expect(t, u, "call-ended"); m["reason"] != "ended" {
		t.Fatalf("ender ack = %v", m)
	}
	if m := expect(t, th, "call-ended"); m["reason"] != "ended" {
		t.Fatalf("peer call-ended = %v", m)
	}
	if st := sb.Stats(); st.Ringing+st.Active != 0 {
		t.Fatalf("stats after end = %+v", st)
	}
}

func TestSignalErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	ws := dial(t, srv, "anon")

	tests := []struct {
		name string
		msg  string
		code string
	}{
		{"bad json", `{"type":`, "bad_request"},
		{"unknown type", `{"type":"dance"}`, "unknown_request"},
		{"not registered", `{"type":"request-call"}`, "not_registered"},
		{"missing session id", `{"type":"end-call"}`, "bad_request"},
		{"bad role", `{"type":"register","role":"admin","displayName":"x"}`, "invalid_role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ws.WriteMessage(websocket.TextMessage, []byte(tt.msg)); err != nil {
				t.Fatal(err)
			}
			if m := expect(t, ws, "error"); m["error"] != tt.code {
				t.Fatalf("error = %v, want %s", m, tt.code)
			}
		})
	}

	send(t, ws, map[string]any{"type": "ping"})
	expect(t, ws, "pong")
}

func TestSignalRegisterFallsBackToClientToken(t *testing.T) {
	srv, _ := newTestServer(t)
	ws := dial(t, srv, "cookie-token")

	send(t, ws, map[string]any{"type": "register", "role": "user", "displayName": "Ann"})
	m := expect(t, ws, "registered")
	if m["participantId"] != "cookie-token" {
		t.Fatalf("participantId = %v", m["participantId"])
	}
	if servers, ok := m["iceServers"].([]any); !ok || len(servers) != 1 {
		t.Fatalf("iceServers = %v", m["iceServers"])
	}

	send(t, ws, map[string]any{"type": "whoami"})
	if w := expect(t, ws, "whoami"); w["role"] != "user" || w["displayName"] != "Ann" {
		t.Fatalf("whoami = %v", w)
	}
}

func TestSignalDisconnectEndsSession(t *testing.T) {
	srv, sb := newTestServer(t)
	u := registerWS(t, srv, "U1", "user", "Ann")
	th := registerWS(t, srv, "T1", "therapist", "Bo")

	send(t, th, map[string]any{"type": "set-availability", "available": true})
	expect(t, th, "availability")
	send(t, u, map[string]any{"type": "request-call"})
	sid := expect(t, u, "call-connecting")["sessionId"]

	th.Close()
	m := expect(t, u, "call-ended")
	if m["sessionId"] != sid || m["reason"] != "disconnect" {
		t.Fatalf("call-ended = %v", m)
	}
	if _, ok := sb.Find("T1"); ok {
		t.Fatal("disconnected callee still registered")
	}

	send(t, u, map[string]any{"type": "end-call", "sessionId": sid})
	if m := expect(t, u, "call-ended"); m["reason"] != "disconnect" {
		t.Fatalf("late end-call ack = %v", m)
	}
}
