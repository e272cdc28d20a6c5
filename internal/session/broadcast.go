package session

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/consolecowboy0/iracing-mcp-server/internal/race"
)

const defaultSendTimeout = 2 * time.Second

// Report summarizes one broadcast: how many sessions were attempted and how
// each fared. Per-session failures are recorded here and nowhere else; a
// pass notification is perishable, so a failed delivery is dropped, not
// retried.
type Report struct {
	Attempted int
	Delivered int
	Failed    int
	Failures  map[string]error
}

// Broadcaster fans a pass event out to every registered session. Deliveries
// are independent: each session gets its own goroutine with a bounded wait,
// so one unhealthy client cannot stall or fail the others.
//
// Constructed once at process start and passed by reference to the poll
// loop; it only reads the registry, never mutates it.
type Broadcaster struct {
	registry *Registry
	timeout  time.Duration
}

func NewBroadcaster(registry *Registry, sendTimeout time.Duration) *Broadcaster {
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &Broadcaster{
		registry: registry,
		timeout:  sendTimeout,
	}
}

// Broadcast delivers ev to every session registered at the moment of the
// call. It never returns an error: serialization problems are logged and
// reported as zero attempts, per-session failures land in the report.
// Sessions that register mid-broadcast are picked up next time.
func (b *Broadcaster) Broadcast(ctx context.Context, ev *race.PassEvent) Report {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[broadcast] event marshal error: %v", err)
		return Report{}
	}

	targets := b.registry.Active()
	report := Report{Attempted: len(targets)}
	if len(targets) == 0 {
		return report
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for id, sender := range targets {
		wg.Add(1)
		go func(id string, sender Sender) {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, b.timeout)
			defer cancel()

			err := sender.Send(sendCtx, payload)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				if report.Failures == nil {
					report.Failures = make(map[string]error)
				}
				report.Failures[id] = err
				return
			}
			report.Delivered++
		}(id, sender)
	}
	wg.Wait()

	return report
}
