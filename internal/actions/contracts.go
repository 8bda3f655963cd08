package actions

import (
	"context"

	"github.com/badkiko/y2m/internal/model"
)

type ParamKind string

const (
	ParamString  ParamKind = "string"
	ParamInteger ParamKind = "integer"
	ParamNumber  ParamKind = "number"
	ParamEnum    ParamKind = "enum"
)

// Field describes one configurable parameter of an action type. The schema
// drives both the admin UI form and invoke-time validation.
type Field struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	Kind     ParamKind `json:"kind"`
	Required bool      `json:"required"`
	Default  any       `json:"default,omitempty"`
	Options  []string  `json:"options,omitempty"`
}

type Schema struct {
	Fields []Field `json:"fields"`
}

// Executor performs one action type's side effect. Implementations convert
// every failure into the returned result; they never propagate errors.
type Executor interface {
	Type() string
	ConfigSchema() Schema
	Execute(ctx context.Context, payload map[string]any) model.ActionResult
}

func failure(message string) model.ActionResult {
	return model.ActionResult{OK: false, Error: message}
}

func success(output string) model.ActionResult {
	return model.ActionResult{OK: true, Output: output}
}
