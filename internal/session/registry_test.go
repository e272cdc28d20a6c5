package session

import (
	"context"
	"sort"
	"testing"
)

type nopSender struct{ tag string }

func (nopSender) Send(context.Context, []byte) error { return nil }

func TestRegistry_RegisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	first := nopSender{tag: "first"}
	r.Register("s1", first)
	r.Register("s1", nopSender{tag: "second"})

	if got := r.Count(); got != 1 {
		t.Fatalf("Count = %d, want 1", got)
	}
	if got := r.Active()["s1"].(nopSender).tag; got != "first" {
		t.Errorf("re-registration replaced sender, got %q", got)
	}
}

func TestRegistry_UnregisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Register("s1", nopSender{})

	r.Unregister("s1")
	r.Unregister("s1")
	r.Unregister("never-registered")

	if got := r.Count(); got != 0 {
		t.Errorf("Count = %d, want 0", got)
	}
}

func TestRegistry_ActiveIsASnapshot(t *testing.T) {
	r := NewRegistry()
	r.Register("s1", nopSender{})
	r.Register("s2", nopSender{})

	snapshot := r.Active()
	r.Unregister("s1")
	r.Register("s3", nopSender{})

	if len(snapshot) != 2 {
		t.Errorf("snapshot mutated by later registry changes: %d entries", len(snapshot))
	}

	ids := r.IDs()
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "s2" || ids[1] != "s3" {
		t.Errorf("IDs = %v, want [s2 s3]", ids)
	}
}
