package telemetry

import (
	"math"
	"sync"

	"github.com/consolecowboy0/iracing-mcp-server/internal/race"
)

// simScript is one step of the scripted demo race: the player's position at
// that tick and the field around them.
type simStep struct {
	position      int
	classPosition int
	lapCompleted  int
	nearby        []race.CarRef
}

func simGap(v float64) *float64 { return &v }

// defaultScript walks the player from P6 to P3 over a couple of laps, with
// a late lose-and-retake so pass detection fires more than once.
func defaultScript() []simStep {
	rival := func(g float64) []race.CarRef {
		return []race.CarRef{
			{CarIdx: 11, CarNumber: "11", Name: "A. Senna Jr", Gap: simGap(42.0)},
			{CarIdx: 22, CarNumber: "22", Name: "R. Herrera", Gap: simGap(g)},
			{CarIdx: 7, CarNumber: "07", Name: "K. Tanaka", Gap: simGap(g - 28.0)},
		}
	}
	return []simStep{
		{position: 6, classPosition: 3, lapCompleted: 0, nearby: rival(8.5)},
		{position: 6, classPosition: 3, lapCompleted: 1, nearby: rival(3.2)},
		{position: 5, classPosition: 2, lapCompleted: 1, nearby: rival(-1.4)},
		{position: 5, classPosition: 2, lapCompleted: 2, nearby: rival(-6.0)},
		{position: 4, classPosition: 2, lapCompleted: 2, nearby: rival(-2.1)},
		{position: 4, classPosition: 2, lapCompleted: 3, nearby: rival(-9.8)},
		{position: 5, classPosition: 3, lapCompleted: 3, nearby: rival(2.5)},
		{position: 4, classPosition: 2, lapCompleted: 4, nearby: rival(-0.8)},
		{position: 3, classPosition: 1, lapCompleted: 4, nearby: rival(-4.4)},
	}
}

// Simulated is a scripted telemetry source for dev and demo runs: no
// simulator required, deterministic passes for exercising the notification
// path end to end.
type Simulated struct {
	mu        sync.Mutex
	connected bool
	tick      int
	script    []simStep
}

func NewSimulated() *Simulated {
	return &Simulated{script: defaultScript()}
}

// NewSimulatedScript builds a simulated source over a caller-supplied
// position script; 0 means "unknown position" at that tick. Used by tests.
func NewSimulatedScript(positions ...int) *Simulated {
	steps := make([]simStep, len(positions))
	for i, p := range positions {
		steps[i] = simStep{position: p}
	}
	return &Simulated{script: steps}
}

func (s *Simulated) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *Simulated) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
}

func (s *Simulated) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// step returns the current script entry. The script holds its last step
// once exhausted, so the demo race settles instead of looping passes.
func (s *Simulated) step() simStep {
	if len(s.script) == 0 {
		return simStep{}
	}
	i := s.tick
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	return s.script[i]
}

func (s *Simulated) Telemetry() (*TelemetryFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil, ErrNotConnected
	}
	// Derived, smooth values so repeated reads look like a moving car.
	phase := float64(s.tick) * 0.7
	return &TelemetryFrame{
		Speed:              52.0 + 8.0*math.Sin(phase),
		RPM:                6200 + 900*math.Sin(phase*1.3),
		Gear:               4,
		Throttle:           0.8 + 0.2*math.Sin(phase),
		Brake:              0,
		SteeringWheelAngle: 0.1 * math.Sin(phase*2),
		Lap:                s.step().lapCompleted + 1,
		LapDistPct:         math.Mod(phase/6.28, 1.0),
		FuelLevel:          40.0 - 0.7*float64(s.tick),
		FuelLevelPct:       (40.0 - 0.7*float64(s.tick)) / 60.0,
	}, nil
}

func (s *Simulated) SessionInfo() (*SessionFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil, ErrNotConnected
	}
	return &SessionFrame{
		TrackName:         "Okayama International",
		TrackConfig:       "Full Course",
		SessionType:       "Race",
		SessionTime:       float64(s.tick) * 90.0,
		SessionTimeRemain: 2700 - float64(s.tick)*90.0,
		AirTemp:           21.5,
		TrackTemp:         31.0,
		SkyCondition:      "Partly Cloudy",
	}, nil
}

func (s *Simulated) CarInfo() (*CarFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil, ErrNotConnected
	}
	return &CarFrame{
		PlayerCarIdx:      3,
		CarClassShortName: "GT3",
		OnTrack:           true,
	}, nil
}

func (s *Simulated) PositionInfo() (*PositionFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil, ErrNotConnected
	}
	st := s.step()
	return &PositionFrame{
		Position:      st.position,
		ClassPosition: st.classPosition,
		LapCompleted:  st.lapCompleted,
		LapsComplete:  st.lapCompleted,
		LapBestTime:   92.412,
		LapLastTime:   93.001,
	}, nil
}

func (s *Simulated) Surroundings(count int) ([]race.CarRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil, ErrNotConnected
	}
	nearby := s.step().nearby
	if count > 0 && count < len(nearby) {
		nearby = nearby[:count]
	}
	out := make([]race.CarRef, len(nearby))
	copy(out, nearby)
	return out, nil
}

// Snapshot advances the script by one tick and returns the player's sample.
// Disconnected sources yield an unknown position, matching real sim loss.
func (s *Simulated) Snapshot() race.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return race.Sample{}
	}
	st := s.step()
	s.tick++
	nearby := make([]race.CarRef, len(st.nearby))
	copy(nearby, st.nearby)
	return race.Sample{
		Position:      st.position,
		ClassPosition: st.classPosition,
		LapCompleted:  st.lapCompleted,
		Nearby:        nearby,
	}
}
