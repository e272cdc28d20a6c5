package rpc

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/consolecowboy0/iracing-mcp-server/internal/history"
	"github.com/consolecowboy0/iracing-mcp-server/internal/race"
	"github.com/consolecowboy0/iracing-mcp-server/internal/telemetry"
)

// Tools dispatches tool calls against the telemetry source and the pass
// history. Tool failures are reported as text, never as protocol errors:
// a sim that is not running is an answer, not a fault.
type Tools struct {
	source telemetry.Source
	passes history.Log
	nearby int
}

func NewTools(source telemetry.Source, passes history.Log, nearbyCars int) *Tools {
	if nearbyCars <= 0 {
		nearbyCars = 6
	}
	return &Tools{source: source, passes: passes, nearby: nearbyCars}
}

func (t *Tools) List() []Tool {
	return []Tool{
		{Name: "connect_iracing", Description: "Connect to the iRacing simulator. Must be called before using other tools."},
		{Name: "disconnect_iracing", Description: "Disconnect from the iRacing simulator."},
		{Name: "check_connection", Description: "Check if connected to the iRacing simulator."},
		{Name: "get_telemetry", Description: "Get current telemetry: speed, RPM, gear, throttle, brake, steering, lap info, and fuel levels."},
		{Name: "get_session_info", Description: "Get session information: track name, session type, time remaining, and weather conditions."},
		{Name: "get_car_info", Description: "Get car information: player car index, class, and track status."},
		{Name: "get_position_info", Description: "Get position and standings information: overall position, class position, and lap times."},
		{Name: "get_standings", Description: "Get a table of the cars immediately around the player with relative gaps."},
		{Name: "get_recent_passes", Description: "Get the most recent detected player passes, newest first. Optional argument: count."},
		{Name: "get_all_data", Description: "Get all available data from iRacing in a single call."},
	}
}

// Call runs the named tool. Unknown names and unavailable data come back as
// text content so conversational clients can relay them verbatim.
func (t *Tools) Call(name string, args json.RawMessage) ToolResult {
	switch name {
	case "connect_iracing":
		if err := t.source.Connect(); err != nil {
			return textResult(fmt.Sprintf("Failed to connect to iRacing: %v. Make sure iRacing is running and you are in a session.", err))
		}
		return textResult("Successfully connected to iRacing.")

	case "disconnect_iracing":
		t.source.Disconnect()
		return textResult("Disconnected from iRacing.")

	case "check_connection":
		if t.source.Connected() {
			return textResult("Connection status: Connected")
		}
		return textResult("Connection status: Not connected")

	case "get_telemetry":
		frame, err := t.source.Telemetry()
		if err != nil {
			return textResult("Failed to get telemetry data. Make sure you are connected to iRacing.")
		}
		return textResult("Telemetry Data:\n" + formatFields(frame))

	case "get_session_info":
		frame, err := t.source.SessionInfo()
		if err != nil {
			return textResult("Failed to get session info. Make sure you are connected to iRacing.")
		}
		return textResult("Session Info:\n" + formatFields(frame))

	case "get_car_info":
		frame, err := t.source.CarInfo()
		if err != nil {
			return textResult("Failed to get car info. Make sure you are connected to iRacing.")
		}
		return textResult("Car Info:\n" + formatFields(frame))

	case "get_position_info":
		frame, err := t.source.PositionInfo()
		if err != nil {
			return textResult("Failed to get position info. Make sure you are connected to iRacing.")
		}
		return textResult("Position Info:\n" + formatFields(frame))

	case "get_standings":
		cars, err := t.source.Surroundings(t.nearby)
		if err != nil {
			return textResult("Failed to get standings. Make sure you are connected to iRacing.")
		}
		return textResult(renderStandings(cars))

	case "get_recent_passes":
		return t.recentPasses(args)

	case "get_all_data":
		return t.allData()

	default:
		return textResult(fmt.Sprintf("Unknown tool: %s", name))
	}
}

func (t *Tools) recentPasses(args json.RawMessage) ToolResult {
	count := 10
	if len(args) > 0 {
		var parsed struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(args, &parsed); err == nil && parsed.Count > 0 {
			count = parsed.Count
		}
	}

	events, err := t.passes.Recent(count)
	if err != nil {
		return textResult(fmt.Sprintf("Failed to read pass history: %v", err))
	}
	if len(events) == 0 {
		return textResult("No passes recorded yet.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recent passes (%d):\n", len(events))
	for _, ev := range events {
		fmt.Fprintf(&b, "%s  %s", ev.Timestamp, ev.Message)
		if ev.PassedCar != nil {
			fmt.Fprintf(&b, " (passed #%s %s)", ev.PassedCar.CarNumber, ev.PassedCar.Name)
		}
		b.WriteByte('\n')
	}
	return textResult(strings.TrimRight(b.String(), "\n"))
}

func (t *Tools) allData() ToolResult {
	if !t.source.Connected() {
		return textResult("Not connected to iRacing. Please connect first.")
	}

	var sections []string
	if frame, err := t.source.Telemetry(); err == nil {
		sections = append(sections, "TELEMETRY:\n"+indent(formatFields(frame)))
	}
	if frame, err := t.source.SessionInfo(); err == nil {
		sections = append(sections, "SESSION:\n"+indent(formatFields(frame)))
	}
	if frame, err := t.source.CarInfo(); err == nil {
		sections = append(sections, "CAR:\n"+indent(formatFields(frame)))
	}
	if frame, err := t.source.PositionInfo(); err == nil {
		sections = append(sections, "POSITION:\n"+indent(formatFields(frame)))
	}

	if len(sections) == 0 {
		return textResult("No data available")
	}
	return textResult(strings.Join(sections, "\n\n"))
}

// formatFields renders a frame struct as "json_name: value" lines, keeping
// declaration order so output is stable.
func formatFields(frame any) string {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Sprintf("%+v", frame)
	}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()

	// Walk tokens instead of unmarshaling to a map: maps lose field order.
	var b strings.Builder
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return string(data)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			break
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			break
		}
		fmt.Fprintf(&b, "%v: %v\n", keyTok, value)
	}
	return strings.TrimRight(b.String(), "\n")
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}

// renderStandings draws the nearby-car list as a fixed-width table in
// source order (ahead of the player first when the source sorts by gap).
func renderStandings(cars []race.CarRef) string {
	if len(cars) == 0 {
		return "No cars nearby."
	}

	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"CAR", "DRIVER", "GAP (M)"})
	for _, car := range cars {
		gap := "-"
		if car.Gap != nil {
			gap = fmt.Sprintf("%+.1f", *car.Gap)
		}
		tw.AppendRow(table.Row{car.CarNumber, car.Name, gap})
	}
	return tw.Render()
}
