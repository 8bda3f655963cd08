package provider

import "testing"

func TestLoadEmbedded(t *testing.T) {
	catalog, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalog: %v", err)
	}
	if len(catalog.Types()) == 0 {
		t.Fatal("embedded catalog is empty")
	}
}

func TestCapabilitiesForKnownType(t *testing.T) {
	catalog, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalog: %v", err)
	}

	caps := catalog.CapabilitiesFor("devices.types.light")
	if len(caps) != 2 {
		t.Fatalf("expected 2 capabilities for light, got %d", len(caps))
	}
	if caps[0].Type != CapOnOff {
		t.Fatalf("first capability = %q, want on_off", caps[0].Type)
	}
	if caps[1].Type != CapRange || caps[1].Instance() != "brightness" {
		t.Fatalf("second capability = %q/%q, want range/brightness", caps[1].Type, caps[1].Instance())
	}
}

func TestCapabilitiesForUnknownTypeFallsBack(t *testing.T) {
	catalog, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalog: %v", err)
	}

	caps := catalog.CapabilitiesFor("devices.types.teapot")
	if len(caps) != 1 || caps[0].Type != CapOnOff {
		t.Fatalf("unknown type must fall back to on_off, got %+v", caps)
	}
}

func TestSnapshotStateShape(t *testing.T) {
	catalog, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalog: %v", err)
	}

	state := catalog.SnapshotState("devices.types.media_device.tv")
	if len(state) != 2 {
		t.Fatalf("expected 2 state entries, got %d", len(state))
	}
	if state[0].State.Instance != "on" {
		t.Fatalf("on_off instance = %q, want on", state[0].State.Instance)
	}
	if _, ok := state[0].State.Value.(bool); !ok {
		t.Fatalf("on_off value must be bool, got %T", state[0].State.Value)
	}
	if state[1].State.Instance != "volume" {
		t.Fatalf("range instance = %q, want volume", state[1].State.Instance)
	}
	value, ok := state[1].State.Value.(int)
	if !ok || value < 0 || value > 100 {
		t.Fatalf("range value out of bounds: %v", state[1].State.Value)
	}
}
