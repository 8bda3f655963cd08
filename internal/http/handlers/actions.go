package handlers

import (
	"net/http"

	"github.com/badkiko/y2m/internal/actions"
)

// ListActionTypes exposes the registered action types and their declared
// config schemas for the binding editor.
func (a *API) ListActionTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"actions": a.deps.Registry.Descriptors()})
}

type actionTestInput struct {
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

// TestAction runs an executor directly against a caller-supplied config,
// bypassing bindings. Used by the UI to try a config before saving it.
func (a *API) TestAction(w http.ResponseWriter, r *http.Request) {
	var in actionTestInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	executor, ok := a.deps.Registry.Get(in.Type)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown action type")
		return
	}
	if in.Config == nil {
		in.Config = map[string]any{}
	}
	if err := actions.ValidateParams(executor.ConfigSchema(), in.Config); err != nil {
		writeError(w, http.StatusBadRequest, "invalid config: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, executor.Execute(r.Context(), in.Config))
}
