package registry

import (
	"testing"
)

func TestRegistryNonUniteDuplicateFails(t *testing.T) {
	r := New[int]("tasks", false)

	if err := r.Register("a", 1, nil); err != nil {
		t.Fatalf("unexpected error on first register: %v", err)
	}

	err := r.Register("a", 2, nil)
	if err == nil {
		t.Fatal("expected ErrDuplicateRegistration, got nil")
	}
	if _, ok := err.(*ErrDuplicateRegistration); !ok {
		t.Fatalf("expected *ErrDuplicateRegistration, got %T", err)
	}

	value, found := r.GetExisting("a")
	if !found || value != 1 {
		t.Fatalf("expected the first value to survive, got %v, %v", value, found)
	}
}

func TestRegistryUniteMerges(t *testing.T) {
	type attrs struct {
		codec     string
		transport string
	}
	merge := func(existing, incoming attrs) attrs {
		if incoming.codec != "" {
			existing.codec = incoming.codec
		}
		if incoming.transport != "" {
			existing.transport = incoming.transport
		}
		return existing
	}

	r := New[attrs]("namespaces", true)

	if err := r.Register("default", attrs{codec: "cbor"}, merge); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register("default", attrs{transport: "loopback"}, merge); err != nil {
		t.Fatalf("unexpected error merging: %v", err)
	}

	value, _ := r.GetExisting("default")
	if value.codec != "cbor" || value.transport != "loopback" {
		t.Fatalf("expected merged attrs, got %+v", value)
	}
}

func TestRegistryGetAutoCreatesInUniteMode(t *testing.T) {
	r := New[[]string]("namespaces", true)

	value, found := r.Get("neverseen")
	if !found {
		t.Fatal("expected Get to auto-create an entry in unite mode")
	}
	if value != nil {
		t.Fatalf("expected zero value, got %v", value)
	}

	// A later register call merges into the entry the earlier Get
	// auto-created, and a later lookup observes the merged value.
	merge := func(existing, incoming []string) []string { return append(existing, incoming...) }
	if err := r.Register("neverseen", []string{"c"}, merge); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	value, _ = r.GetExisting("neverseen")
	if len(value) != 1 || value[0] != "c" {
		t.Fatalf("expected [c], got %v", value)
	}
}

func TestRegistryGetNonUniteDoesNotAutoCreate(t *testing.T) {
	r := New[int]("tasks", false)

	_, found := r.Get("missing")
	if found {
		t.Fatal("expected non-unite registry not to auto-create on Get")
	}
}

func TestRegistryUnregisterMissingIsError(t *testing.T) {
	r := New[int]("tasks", false)

	if err := r.Unregister("missing"); err == nil {
		t.Fatal("expected error unregistering a missing name")
	}
}
