package race

import (
	"sync"
	"time"
)

// Tracker converts a stream of position samples into zero-or-one PassEvent
// per sample. It holds only the last valid position seen; a sample with an
// unknown position leaves that baseline untouched so a sim reconnect is
// compared against the position from before the gap.
//
// Safe for concurrent use: overlapping Observe calls cannot interleave
// their read-compare-update of the baseline.
type Tracker struct {
	mu       sync.Mutex
	lastPos  int // 0 until the first valid sample
	now      func() time.Time
	observed int64 // samples seen, valid or not
}

func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// Observe compares sample against the last known position and returns a
// PassEvent when the position strictly improved, nil otherwise. A jump of
// several places between two samples yields a single event describing the
// net change; intermediate steps that were never sampled are not
// reconstructed. Never returns an error: anything it cannot derive degrades
// to an absent field.
func (t *Tracker) Observe(sample Sample) *PassEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.observed++

	if !sample.HasPosition() {
		return nil
	}

	prev := t.lastPos
	t.lastPos = sample.Position

	if prev == 0 {
		// First valid observation: baseline only, nothing to compare.
		return nil
	}
	if sample.Position >= prev {
		return nil
	}
	return newPassEvent(prev, sample, t.now())
}

// LastPosition returns the most recent valid position observed, or 0 when
// no valid sample has arrived yet.
func (t *Tracker) LastPosition() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastPos
}

// Observed returns the total number of samples seen, including ones with
// an unknown position.
func (t *Tracker) Observed() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.observed
}
