// Package monitor runs the telemetry poll loop: pull a position sample,
// feed it to the pass tracker, and fan any detected pass out to the
// registered sessions.
package monitor

import (
	"context"
	"log"
	"time"

	"github.com/consolecowboy0/iracing-mcp-server/internal/history"
	"github.com/consolecowboy0/iracing-mcp-server/internal/race"
	"github.com/consolecowboy0/iracing-mcp-server/internal/session"
	"github.com/consolecowboy0/iracing-mcp-server/internal/telemetry"
)

type Monitor struct {
	source      telemetry.Source
	tracker     *race.Tracker
	broadcaster *session.Broadcaster
	passes      history.Log
	interval    time.Duration
}

func NewMonitor(source telemetry.Source, tracker *race.Tracker, broadcaster *session.Broadcaster, passes history.Log, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &Monitor{
		source:      source,
		tracker:     tracker,
		broadcaster: broadcaster,
		passes:      passes,
		interval:    interval,
	}
}

// Start polls until ctx is cancelled. The first poll happens immediately so
// a fresh baseline exists before the first tick.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	log.Printf("[monitor] started (poll interval %s)", m.interval)

	m.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[monitor] stopped")
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

// poll runs one cycle. A source with no valid data yields a sample with an
// unknown position, which the tracker absorbs without touching its
// baseline; sim disconnects are a normal state here, not an error.
func (m *Monitor) poll(ctx context.Context) {
	sample := m.source.Snapshot()

	ev := m.tracker.Observe(sample)
	if ev == nil {
		return
	}

	if err := m.passes.Append(ev); err != nil {
		log.Printf("[monitor] pass history append failed: %v", err)
	}

	report := m.broadcaster.Broadcast(ctx, ev)
	if report.Failed > 0 {
		log.Printf("[monitor] pass P%d->P%d: delivered %d/%d sessions (%d failed)",
			ev.PreviousPosition, ev.CurrentPosition, report.Delivered, report.Attempted, report.Failed)
		return
	}
	log.Printf("[monitor] pass P%d->P%d: delivered to %d sessions",
		ev.PreviousPosition, ev.CurrentPosition, report.Delivered)
}
