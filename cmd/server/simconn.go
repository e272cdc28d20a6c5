package main

import (
	"github.com/pkg/errors"

	"github.com/consolecowboy0/iracing-mcp-server/internal/race"
	"github.com/consolecowboy0/iracing-mcp-server/internal/telemetry"
)

// newSimConn returns the live iRacing telemetry connection for this build.
// The shared-memory binding is platform specific and plugs in behind
// telemetry.Conn; builds without one still run the full server, with
// connect attempts reporting the missing binding and every tool degrading
// to "not connected".
func newSimConn() telemetry.Conn {
	return unavailableConn{}
}

type unavailableConn struct{}

func (unavailableConn) Startup() error {
	return errors.New("no iRacing telemetry binding in this build (run with -simulated, or build on Windows with the irsdk binding)")
}

func (unavailableConn) Shutdown() {}
func (unavailableConn) Running() bool { return false }

func (unavailableConn) Value(string) (float64, bool) { return 0, false }
func (unavailableConn) ArrayValue(string, int) (float64, bool) { return 0, false }
func (unavailableConn) StringValue(string) (string, bool) { return "", false }
func (unavailableConn) Nearby(int) []race.CarRef { return nil }
