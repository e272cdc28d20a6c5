package race

// CarRef identifies a nearby competitor at sample time. Gap is the relative
// distance to the player in meters: positive means the car is ahead, negative
// behind. Nil when the source cannot compute a gap (e.g. different lap).
type CarRef struct {
	CarIdx    int      `json:"car_idx"`
	CarNumber string   `json:"car_number"`
	Name      string   `json:"name"`
	Gap       *float64 `json:"gap_meters,omitempty"`
}

// Sample is one snapshot of race state pulled from the telemetry source.
// Position and ClassPosition use 0 as the "unknown" sentinel; iRacing
// positions start at 1, so 0 only appears when the sim is disconnected or
// the player is not in a session yet.
type Sample struct {
	Position      int      `json:"overall_position"`
	ClassPosition int      `json:"class_position,omitempty"`
	LapCompleted  int      `json:"lap_completed"`
	Nearby        []CarRef `json:"nearby_cars,omitempty"`
}

// HasPosition reports whether the sample carries a valid overall position.
func (s Sample) HasPosition() bool {
	return s.Position >= 1
}
