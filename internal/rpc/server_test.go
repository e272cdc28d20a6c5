package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/consolecowboy0/iracing-mcp-server/internal/history"
	"github.com/consolecowboy0/iracing-mcp-server/internal/race"
	"github.com/consolecowboy0/iracing-mcp-server/internal/session"
	"github.com/consolecowboy0/iracing-mcp-server/internal/telemetry"
)

type testEnv struct {
	registry *session.Registry
	tracker  *race.Tracker
	passes   history.Log
	srv      *httptest.Server
}

func newTestEnv(t *testing.T, authToken string) *testEnv {
	t.Helper()
	registry := session.NewRegistry()
	tracker := race.NewTracker()
	passes := history.NewMemory()
	source := telemetry.NewSimulated()
	tools := NewTools(source, passes, 6)

	server := NewServer(registry, tools, source, tracker, passes, authToken)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	return &testEnv{registry: registry, tracker: tracker, passes: passes, srv: ts}
}

func (e *testEnv) wsURL(query string) string {
	u := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, req string) Response {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(req)); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("unmarshal response %q: %v", data, err)
	}
	return resp
}

func waitForSessions(t *testing.T, registry *session.Registry, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for registry.Count() != want && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := registry.Count(); got != want {
		t.Fatalf("registry has %d sessions, want %d", got, want)
	}
}

func TestWS_ToolsListRoundTrip(t *testing.T) {
	env := newTestEnv(t, "")
	conn := dialWS(t, env.wsURL(""))

	resp := roundTrip(t, conn, `{"id":1,"method":"tools/list"}`)
	if resp.Error != nil {
		t.Fatalf("tools/list error: %+v", resp.Error)
	}
	if string(resp.ID) != "1" {
		t.Errorf("response id = %s, want 1", resp.ID)
	}

	raw, _ := json.Marshal(resp.Result)
	var result ListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.Tools) != 10 {
		t.Errorf("tools/list returned %d tools, want 10", len(result.Tools))
	}

	// A well-formed request enrolls the session for pass notifications.
	waitForSessions(t, env.registry, 1)
}

func TestWS_ToolCallOverWire(t *testing.T) {
	env := newTestEnv(t, "")
	conn := dialWS(t, env.wsURL(""))

	resp := roundTrip(t, conn, `{"id":7,"method":"tools/call","params":{"name":"check_connection"}}`)
	if resp.Error != nil {
		t.Fatalf("tools/call error: %+v", resp.Error)
	}
	raw, _ := json.Marshal(resp.Result)
	if !strings.Contains(string(raw), "Not connected") {
		t.Errorf("check_connection result = %s", raw)
	}
}

func TestWS_PassNotificationReachesClient(t *testing.T) {
	env := newTestEnv(t, "")
	conn := dialWS(t, env.wsURL(""))

	roundTrip(t, conn, `{"id":1,"method":"ping"}`)
	waitForSessions(t, env.registry, 1)

	b := session.NewBroadcaster(env.registry, time.Second)
	ev := &race.PassEvent{
		Type:             race.EventTypePass,
		Timestamp:        "2025-03-14T15:09:26Z",
		Message:          "Player advanced from P6 to P4",
		PreviousPosition: 6,
		CurrentPosition:  4,
	}
	report := b.Broadcast(context.Background(), ev)
	if report.Delivered != 1 {
		t.Fatalf("delivered %d, failures %v", report.Delivered, report.Failures)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read notification: %v", err)
	}

	var note Notification
	if err := json.Unmarshal(data, &note); err != nil {
		t.Fatalf("unmarshal notification %q: %v", data, err)
	}
	if note.Method != "notifications/message" {
		t.Errorf("method = %q", note.Method)
	}
	if note.Params.Logger != EventLogger {
		t.Errorf("logger = %q, want %q", note.Params.Logger, EventLogger)
	}

	var got race.PassEvent
	if err := json.Unmarshal(note.Params.Data, &got); err != nil {
		t.Fatalf("unmarshal event data: %v", err)
	}
	if got.Type != race.EventTypePass || got.PreviousPosition != 6 || got.CurrentPosition != 4 {
		t.Errorf("event data = %+v", got)
	}
}

func TestWS_MalformedRequestDoesNotEnroll(t *testing.T) {
	env := newTestEnv(t, "")
	conn := dialWS(t, env.wsURL(""))

	resp := roundTrip(t, conn, `{not json`)
	if resp.Error == nil || resp.Error.Code != codeParseError {
		t.Fatalf("want parse error, got %+v", resp)
	}
	if env.registry.Count() != 0 {
		t.Errorf("malformed request enrolled a session")
	}

	resp = roundTrip(t, conn, `{"id":2}`)
	if resp.Error == nil || resp.Error.Code != codeInvalidRequest {
		t.Fatalf("want invalid request error, got %+v", resp)
	}
	if env.registry.Count() != 0 {
		t.Errorf("request without method enrolled a session")
	}

	resp = roundTrip(t, conn, `{"id":3,"method":"nope"}`)
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("want method not found, got %+v", resp)
	}
	waitForSessions(t, env.registry, 1)
}

func TestWS_DisconnectUnregisters(t *testing.T) {
	env := newTestEnv(t, "")
	conn := dialWS(t, env.wsURL(""))

	roundTrip(t, conn, `{"id":1,"method":"ping"}`)
	waitForSessions(t, env.registry, 1)

	conn.Close()
	waitForSessions(t, env.registry, 0)
}

func TestWS_AuthToken(t *testing.T) {
	env := newTestEnv(t, "secret")

	if _, _, err := websocket.DefaultDialer.Dial(env.wsURL(""), nil); err == nil {
		t.Fatal("dial without token succeeded")
	}

	conn := dialWS(t, env.wsURL("token=secret"))
	resp := roundTrip(t, conn, `{"id":1,"method":"ping"}`)
	if resp.Error != nil {
		t.Fatalf("ping over authorized socket: %+v", resp.Error)
	}
}

func TestAPI_Status(t *testing.T) {
	env := newTestEnv(t, "secret")

	resp, err := http.Get(env.srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without token = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get with token: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var status statusPayload
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Connected {
		t.Errorf("reported connected with no source attached")
	}
}

func TestAPI_Passes(t *testing.T) {
	env := newTestEnv(t, "")
	env.passes.Append(&race.PassEvent{
		Type:            race.EventTypePass,
		Message:         "Player advanced from P3 to P2",
		CurrentPosition: 2,
	})

	resp, err := http.Get(env.srv.URL + "/api/passes")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var events []*race.PassEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 1 || events[0].CurrentPosition != 2 {
		t.Errorf("passes = %+v", events)
	}
}
