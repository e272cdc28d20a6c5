package telemetry

import (
	"log"
	"sync"

	"github.com/pkg/errors"

	"github.com/consolecowboy0/iracing-mcp-server/internal/race"
)

// Conn is the low-level simulator connection the collector reads from, an
// irsdk-style shared telemetry reader. Decoding the simulator's memory
// layout is the binding's problem; the collector only asks for named values.
//
// Missing variables report ok=false (a session may not publish every field),
// which the collector degrades to zero values rather than errors.
type Conn interface {
	// Startup attaches to the simulator's telemetry interface.
	Startup() error
	// Shutdown detaches. Safe to call when not attached.
	Shutdown()
	// Running reports whether the attached simulator is still feeding data.
	Running() bool

	Value(name string) (float64, bool)
	ArrayValue(name string, idx int) (float64, bool)
	StringValue(name string) (string, bool)

	// Nearby returns up to count cars around the player with relative gaps
	// (positive ahead, negative behind, nil gap when not computable).
	Nearby(count int) []race.CarRef
}

// Collector implements Source on top of a Conn, managing the connection
// lifecycle and degrading every read to zero values when the sim is gone.
// The simulator is an external process that can vanish at any time, so
// readers never assume connectivity outlives a single call.
type Collector struct {
	mu        sync.Mutex
	conn      Conn
	connected bool

	// procName is the simulator process checked before connecting; empty
	// disables the check.
	procName string
}

func NewCollector(conn Conn, procName string) *Collector {
	return &Collector{conn: conn, procName: procName}
}

// Connect attaches to the simulator. It first verifies the sim process is
// actually running so a dead shared-memory segment doesn't produce a
// half-open connection.
func (c *Collector) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected && c.conn.Running() {
		return nil
	}
	if c.procName != "" {
		running, err := processRunning(c.procName)
		if err != nil {
			log.Printf("[telemetry] process scan failed, attempting startup anyway: %v", err)
		} else if !running {
			return errors.Errorf("simulator process %q not running", c.procName)
		}
	}
	if err := c.conn.Startup(); err != nil {
		return errors.Wrap(err, "telemetry startup")
	}
	c.connected = true
	log.Printf("[telemetry] connected to iRacing")
	return nil
}

func (c *Collector) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return
	}
	c.conn.Shutdown()
	c.connected = false
	log.Printf("[telemetry] disconnected from iRacing")
}

// Connected reports whether the sim is attached and still alive. A sim that
// exited since the last check clears the connected flag.
func (c *Collector) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectedLocked()
}

func (c *Collector) connectedLocked() bool {
	if !c.connected {
		return false
	}
	if c.conn.Running() {
		return true
	}
	c.connected = false
	log.Printf("[telemetry] simulator went away")
	return false
}

// num fetches a scalar variable, degrading to 0 when the session does not
// publish it.
func (c *Collector) num(name string) float64 {
	v, _ := c.conn.Value(name)
	return v
}

func (c *Collector) str(name string) string {
	v, _ := c.conn.StringValue(name)
	return v
}

func (c *Collector) Telemetry() (*TelemetryFrame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connectedLocked() {
		return nil, ErrNotConnected
	}
	return &TelemetryFrame{
		Speed:              c.num("Speed"),
		RPM:                c.num("RPM"),
		Gear:               int(c.num("Gear")),
		Throttle:           c.num("Throttle"),
		Brake:              c.num("Brake"),
		SteeringWheelAngle: c.num("SteeringWheelAngle"),
		Lap:                int(c.num("Lap")),
		LapDistPct:         c.num("LapDistPct"),
		FuelLevel:          c.num("FuelLevel"),
		FuelLevelPct:       c.num("FuelLevelPct"),
		EngineWarnings:     int(c.num("EngineWarnings")),
	}, nil
}

func (c *Collector) SessionInfo() (*SessionFrame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connectedLocked() {
		return nil, ErrNotConnected
	}
	return &SessionFrame{
		TrackName:         c.str("TrackDisplayName"),
		TrackConfig:       c.str("TrackConfigName"),
		SessionType:       c.str("SessionType"),
		SessionTime:       c.num("SessionTime"),
		SessionTimeRemain: c.num("SessionTimeRemain"),
		AirTemp:           c.num("AirTemp"),
		TrackTemp:         c.num("TrackTemp"),
		SkyCondition:      c.str("Skies"),
	}, nil
}

func (c *Collector) CarInfo() (*CarFrame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connectedLocked() {
		return nil, ErrNotConnected
	}
	return &CarFrame{
		PlayerCarIdx:      int(c.num("PlayerCarIdx")),
		CarClassShortName: c.str("PlayerCarClassShortName"),
		OnTrack:           c.num("IsOnTrack") != 0,
		InGarage:          c.num("IsInGarage") != 0,
	}, nil
}

func (c *Collector) PositionInfo() (*PositionFrame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connectedLocked() {
		return nil, ErrNotConnected
	}
	return c.positionLocked(), nil
}

func (c *Collector) positionLocked() *PositionFrame {
	playerIdx := int(c.num("PlayerCarIdx"))
	pos, _ := c.conn.ArrayValue("CarIdxPosition", playerIdx)
	classPos, _ := c.conn.ArrayValue("CarIdxClassPosition", playerIdx)
	return &PositionFrame{
		Position:      int(pos),
		ClassPosition: int(classPos),
		LapCompleted:  int(c.num("LapCompleted")),
		LapsComplete:  int(c.num("LapsComplete")),
		LapBestTime:   c.num("LapBestLapTime"),
		LapLastTime:   c.num("LapLastLapTime"),
	}
}

func (c *Collector) Surroundings(count int) ([]race.CarRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connectedLocked() {
		return nil, ErrNotConnected
	}
	return c.conn.Nearby(count), nil
}

// Snapshot builds a position sample for the pass tracker. When the sim is
// unavailable the sample has an unknown position rather than an error, so the
// poll loop runs indefinitely across disconnects and reconnects.
func (c *Collector) Snapshot() race.Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connectedLocked() {
		return race.Sample{}
	}
	pos := c.positionLocked()
	return race.Sample{
		Position:      pos.Position,
		ClassPosition: pos.ClassPosition,
		LapCompleted:  pos.LapCompleted,
		Nearby:        c.conn.Nearby(6),
	}
}
