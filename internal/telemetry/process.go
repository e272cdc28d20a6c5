package telemetry

import (
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// processRunning reports whether a process whose name contains name is
// currently running. Used to avoid attaching to a stale telemetry segment
// after the simulator exits without cleaning up.
func processRunning(name string) (bool, error) {
	procs, err := process.Processes()
	if err != nil {
		return false, err
	}
	needle := strings.ToLower(name)
	for _, p := range procs {
		pname, err := p.Name()
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(pname), needle) {
			return true, nil
		}
	}
	return false, nil
}
