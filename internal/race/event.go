package race

import (
	"fmt"
	"time"
)

// EventTypePass is the wire type tag for a player pass event.
const EventTypePass = "player_pass"

// PassEvent is an immutable record of one detected position improvement.
// Field names are fixed for compatibility with downstream consumers.
type PassEvent struct {
	Type             string  `json:"type"`
	Timestamp        string  `json:"timestamp"`
	Message          string  `json:"message"`
	PreviousPosition int     `json:"previous_position"`
	CurrentPosition  int     `json:"current_position"`
	ClassPosition    int     `json:"class_position,omitempty"`
	LapCompleted     int     `json:"lap_completed"`
	PassedCar        *CarRef `json:"passed_car,omitempty"`
}

// newPassEvent builds a PassEvent for an improvement from prev to the
// sample's position. The timestamp is taken at construction time.
func newPassEvent(prev int, sample Sample, now time.Time) *PassEvent {
	ev := &PassEvent{
		Type:             EventTypePass,
		Timestamp:        now.Format(time.RFC3339),
		PreviousPosition: prev,
		CurrentPosition:  sample.Position,
		ClassPosition:    sample.ClassPosition,
		LapCompleted:     sample.LapCompleted,
		PassedCar:        passedCar(sample.Nearby),
	}
	ev.Message = fmt.Sprintf("Player advanced from P%d to P%d", prev, sample.Position)
	return ev
}

// passedCar picks the competitor most likely to have been overtaken: the car
// now immediately behind the player, i.e. the entry with a negative gap
// closest to zero. Entries without a computable gap are skipped; ties keep
// the first entry in source order. Returns nil when nothing maps to the
// vacated slot; enrichment only, never an error.
func passedCar(nearby []CarRef) *CarRef {
	var best *CarRef
	for i := range nearby {
		gap := nearby[i].Gap
		if gap == nil || *gap >= 0 {
			continue
		}
		if best == nil || *gap > *best.Gap {
			best = &nearby[i]
		}
	}
	if best == nil {
		return nil
	}
	car := *best
	return &car
}
