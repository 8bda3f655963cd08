package actions

import (
	"fmt"
	"sort"
)

// Descriptor is the UI-facing summary of one registered action type.
type Descriptor struct {
	Type         string `json:"type"`
	ConfigSchema Schema `json:"configSchema"`
}

// Registry maps action type strings to executors. It is built once at
// startup and read-only afterwards.
type Registry struct {
	executors map[string]Executor
}

func NewRegistry(executors ...Executor) *Registry {
	r := &Registry{executors: make(map[string]Executor, len(executors))}
	for _, executor := range executors {
		r.executors[executor.Type()] = executor
	}
	return r
}

func (r *Registry) Get(actionType string) (Executor, bool) {
	executor, ok := r.executors[actionType]
	return executor, ok
}

func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.executors))
	for _, executor := range r.executors {
		out = append(out, Descriptor{Type: executor.Type(), ConfigSchema: executor.ConfigSchema()})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Type < out[j].Type
	})
	return out
}

// Validate checks params against the schema declared by the action type.
func (r *Registry) Validate(actionType string, params map[string]any) error {
	executor, ok := r.executors[actionType]
	if !ok {
		return fmt.Errorf("unknown action type %q", actionType)
	}
	return ValidateParams(executor.ConfigSchema(), params)
}
