package telemetry

import (
	"github.com/pkg/errors"

	"github.com/consolecowboy0/iracing-mcp-server/internal/race"
)

// ErrNotConnected is returned by frame getters when no simulator session is
// available. Snapshot never returns it: an unavailable source degrades to a
// sample with an unknown position instead.
var ErrNotConnected = errors.New("not connected to iRacing")

// TelemetryFrame holds the live car telemetry exposed by the get_telemetry
// tool.
type TelemetryFrame struct {
	Speed              float64 `json:"speed"`
	RPM                float64 `json:"rpm"`
	Gear               int     `json:"gear"`
	Throttle           float64 `json:"throttle"`
	Brake              float64 `json:"brake"`
	SteeringWheelAngle float64 `json:"steering_wheel_angle"`
	Lap                int     `json:"lap"`
	LapDistPct         float64 `json:"lap_dist_pct"`
	FuelLevel          float64 `json:"fuel_level"`
	FuelLevelPct       float64 `json:"fuel_level_pct"`
	EngineWarnings     int     `json:"engine_warnings"`
}

// SessionFrame describes the current event: track, session type and weather.
type SessionFrame struct {
	TrackName         string  `json:"track_name"`
	TrackConfig       string  `json:"track_config"`
	SessionType       string  `json:"session_type"`
	SessionTime       float64 `json:"session_time"`
	SessionTimeRemain float64 `json:"session_time_remain"`
	AirTemp           float64 `json:"air_temp"`
	TrackTemp         float64 `json:"track_temp"`
	SkyCondition      string  `json:"sky_condition"`
}

// CarFrame describes the player's car and where it currently is.
type CarFrame struct {
	PlayerCarIdx      int    `json:"player_car_idx"`
	CarClassShortName string `json:"car_class_short_name"`
	OnTrack           bool   `json:"is_on_track"`
	InGarage          bool   `json:"is_in_garage"`
}

// PositionFrame holds standings data for the player.
type PositionFrame struct {
	Position      int     `json:"position"`
	ClassPosition int     `json:"class_position"`
	LapCompleted  int     `json:"lap_completed"`
	LapsComplete  int     `json:"laps_completed"`
	LapBestTime   float64 `json:"lap_best_time"`
	LapLastTime   float64 `json:"lap_last_time"`
}

// Source supplies simulator state to the tools and the poll loop. Frame
// getters return ErrNotConnected when no session is available; Snapshot
// instead degrades to a sample whose position is unknown, so the poll loop
// keeps running across sim disconnects.
type Source interface {
	Connect() error
	Disconnect()
	Connected() bool

	Telemetry() (*TelemetryFrame, error)
	SessionInfo() (*SessionFrame, error)
	CarInfo() (*CarFrame, error)
	PositionInfo() (*PositionFrame, error)
	Surroundings(count int) ([]race.CarRef, error)

	Snapshot() race.Sample
}
