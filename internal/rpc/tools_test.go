package rpc

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/consolecowboy0/iracing-mcp-server/internal/history"
	"github.com/consolecowboy0/iracing-mcp-server/internal/race"
	"github.com/consolecowboy0/iracing-mcp-server/internal/telemetry"
)

func newTestTools(t *testing.T, connected bool) *Tools {
	t.Helper()
	src := telemetry.NewSimulated()
	if connected {
		if err := src.Connect(); err != nil {
			t.Fatalf("Connect: %v", err)
		}
	}
	return NewTools(src, history.NewMemory(), 6)
}

func textOf(t *testing.T, res ToolResult) string {
	t.Helper()
	if len(res.Content) != 1 || res.Content[0].Type != "text" {
		t.Fatalf("result is not a single text block: %+v", res)
	}
	return res.Content[0].Text
}

func TestList_CoversAllTools(t *testing.T) {
	tools := newTestTools(t, false).List()

	want := []string{
		"connect_iracing", "disconnect_iracing", "check_connection",
		"get_telemetry", "get_session_info", "get_car_info",
		"get_position_info", "get_standings", "get_recent_passes",
		"get_all_data",
	}
	if len(tools) != len(want) {
		t.Fatalf("List returned %d tools, want %d", len(tools), len(want))
	}
	byName := make(map[string]Tool, len(tools))
	for _, tool := range tools {
		byName[tool.Name] = tool
		if tool.Description == "" {
			t.Errorf("tool %s has no description", tool.Name)
		}
	}
	for _, name := range want {
		if _, ok := byName[name]; !ok {
			t.Errorf("List missing tool %s", name)
		}
	}
}

func TestCall_ConnectionLifecycle(t *testing.T) {
	tools := newTestTools(t, false)

	if got := textOf(t, tools.Call("check_connection", nil)); !strings.Contains(got, "Not connected") {
		t.Errorf("check_connection = %q", got)
	}
	if got := textOf(t, tools.Call("connect_iracing", nil)); !strings.Contains(got, "Successfully connected") {
		t.Errorf("connect_iracing = %q", got)
	}
	if got := textOf(t, tools.Call("check_connection", nil)); !strings.Contains(got, "Connected") {
		t.Errorf("check_connection after connect = %q", got)
	}
	if got := textOf(t, tools.Call("disconnect_iracing", nil)); !strings.Contains(got, "Disconnected") {
		t.Errorf("disconnect_iracing = %q", got)
	}
}

func TestCall_GettersRequireConnection(t *testing.T) {
	tools := newTestTools(t, false)

	for _, name := range []string{"get_telemetry", "get_session_info", "get_car_info", "get_position_info", "get_standings"} {
		got := textOf(t, tools.Call(name, nil))
		if !strings.Contains(got, "Make sure you are connected") {
			t.Errorf("%s without connection = %q", name, got)
		}
	}

	got := textOf(t, tools.Call("get_all_data", nil))
	if !strings.Contains(got, "Not connected") {
		t.Errorf("get_all_data without connection = %q", got)
	}
}

func TestCall_TelemetryAndSessionText(t *testing.T) {
	tools := newTestTools(t, true)

	tel := textOf(t, tools.Call("get_telemetry", nil))
	if !strings.HasPrefix(tel, "Telemetry Data:") || !strings.Contains(tel, "speed:") {
		t.Errorf("get_telemetry = %q", tel)
	}

	ses := textOf(t, tools.Call("get_session_info", nil))
	if !strings.Contains(ses, "track_name: Okayama International") {
		t.Errorf("get_session_info = %q", ses)
	}

	all := textOf(t, tools.Call("get_all_data", nil))
	for _, section := range []string{"TELEMETRY:", "SESSION:", "CAR:", "POSITION:"} {
		if !strings.Contains(all, section) {
			t.Errorf("get_all_data missing %s section: %q", section, all)
		}
	}
}

func TestCall_StandingsTable(t *testing.T) {
	tools := newTestTools(t, true)

	got := textOf(t, tools.Call("get_standings", nil))
	if !strings.Contains(got, "DRIVER") || !strings.Contains(got, "R. Herrera") {
		t.Errorf("get_standings = %q", got)
	}
}

func TestCall_RecentPasses(t *testing.T) {
	src := telemetry.NewSimulated()
	passes := history.NewMemory()
	tools := NewTools(src, passes, 6)

	if got := textOf(t, tools.Call("get_recent_passes", nil)); got != "No passes recorded yet." {
		t.Errorf("empty history = %q", got)
	}

	for i := 0; i < 3; i++ {
		passes.Append(&race.PassEvent{
			Type:             race.EventTypePass,
			Timestamp:        "2025-03-14T15:09:26Z",
			Message:          "Player advanced from P5 to P4",
			PreviousPosition: 5,
			CurrentPosition:  4,
		})
	}

	args, _ := json.Marshal(map[string]int{"count": 2})
	got := textOf(t, tools.Call("get_recent_passes", args))
	if !strings.Contains(got, "Recent passes (2):") {
		t.Errorf("get_recent_passes = %q", got)
	}
	if strings.Count(got, "Player advanced") != 2 {
		t.Errorf("want 2 pass lines, got %q", got)
	}
}

func TestCall_UnknownTool(t *testing.T) {
	tools := newTestTools(t, false)
	if got := textOf(t, tools.Call("warp_drive", nil)); got != "Unknown tool: warp_drive" {
		t.Errorf("unknown tool = %q", got)
	}
}

func TestFormatFields_KeepsDeclarationOrder(t *testing.T) {
	frame := &telemetry.PositionFrame{Position: 4, ClassPosition: 2, LapCompleted: 9}
	got := formatFields(frame)

	posIdx := strings.Index(got, "position:")
	lapIdx := strings.Index(got, "lap_completed:")
	if posIdx < 0 || lapIdx < 0 || posIdx > lapIdx {
		t.Errorf("field order lost:\n%s", got)
	}
	if !strings.Contains(got, "position: 4") {
		t.Errorf("missing value:\n%s", got)
	}
}
