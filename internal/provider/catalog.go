// Package provider translates internal device and binding state into the
// Yandex Smart Home schema.
package provider

import (
	_ "embed"
	"encoding/json"
	"math/rand"
	"sort"
)

const (
	CapOnOff = "devices.capabilities.on_off"
	CapRange = "devices.capabilities.range"
)

//go:embed data/device_types.json
var embeddedCatalog []byte

// Capability is one controllable dimension a device type exposes to the
// skill, in wire shape.
type Capability struct {
	Type        string         `json:"type"`
	Retrievable bool           `json:"retrievable"`
	Reportable  bool           `json:"reportable"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// StateValue is the instance/value pair reported for one capability.
type StateValue struct {
	Instance string `json:"instance"`
	Value    any    `json:"value"`
}

// CapabilityState is the per-capability snapshot returned by device queries.
type CapabilityState struct {
	Type  string     `json:"type"`
	State StateValue `json:"state"`
}

// Catalog maps Yandex device-type strings to their capability lists. The
// data is bundled reference material and read-only at runtime.
type Catalog struct {
	types map[string][]Capability
}

func LoadEmbedded() (*Catalog, error) {
	return Load(embeddedCatalog)
}

func Load(data []byte) (*Catalog, error) {
	m := map[string][]Capability{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &Catalog{types: m}, nil
}

// CapabilitiesFor returns the capability list for the device type. Unknown
// types degrade to a bare on_off device rather than failing.
func (c *Catalog) CapabilitiesFor(deviceType string) []Capability {
	if caps, ok := c.types[deviceType]; ok {
		return caps
	}
	return []Capability{{Type: CapOnOff, Retrievable: true, Reportable: true}}
}

// All returns the full type-to-capabilities catalog. Callers must treat the
// result as read-only.
func (c *Catalog) All() map[string][]Capability {
	return c.types
}

// Types lists the known device types, sorted for stable output.
func (c *Catalog) Types() []string {
	out := make([]string, 0, len(c.types))
	for t := range c.types {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Instance derives the capability instance name: on_off reports "on", range
// reports the instance declared in its parameters.
func (c Capability) Instance() string {
	if c.Type == CapOnOff {
		return "on"
	}
	if c.Parameters != nil {
		if instance, ok := c.Parameters["instance"].(string); ok && instance != "" {
			return instance
		}
	}
	return "brightness"
}

// SnapshotState synthesizes a current-state snapshot for the device type.
// With no real telemetry the values are random placeholders; the shape is
// what matters to the skill.
func (c *Catalog) SnapshotState(deviceType string) []CapabilityState {
	caps := c.CapabilitiesFor(deviceType)
	state := make([]CapabilityState, 0, len(caps))
	for _, capability := range caps {
		switch capability.Type {
		case CapOnOff:
			state = append(state, CapabilityState{
				Type:  capability.Type,
				State: StateValue{Instance: "on", Value: rand.Intn(2) == 1},
			})
		case CapRange:
			state = append(state, CapabilityState{
				Type:  capability.Type,
				State: StateValue{Instance: capability.Instance(), Value: rand.Intn(101)},
			})
		}
	}
	return state
}
