package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/badkiko/y2m/internal/model"
	"github.com/badkiko/y2m/internal/storage"
)

type bindingCreateInput struct {
	DeviceID     string         `json:"device_id"`
	Capability   string         `json:"capability"`
	ActionType   string         `json:"action_type"`
	ActionConfig map[string]any `json:"action_config"`
}

type bindingUpdateInput struct {
	Capability   *string        `json:"capability"`
	ActionType   *string        `json:"action_type"`
	ActionConfig map[string]any `json:"action_config"`
}

func (a *API) ListBindings(w http.ResponseWriter, r *http.Request) {
	bindings, err := a.deps.Store.ListBindings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if bindings == nil {
		bindings = []model.Binding{}
	}
	writeJSON(w, http.StatusOK, bindings)
}

// CreateBinding stores the binding after checking the device exists. The
// action_config is accepted as-is; it is validated against the executor
// schema at invoke time.
func (a *API) CreateBinding(w http.ResponseWriter, r *http.Request) {
	var in bindingCreateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if strings.TrimSpace(in.DeviceID) == "" || strings.TrimSpace(in.Capability) == "" || strings.TrimSpace(in.ActionType) == "" {
		writeError(w, http.StatusBadRequest, "device_id, capability and action_type are required")
		return
	}

	exists, err := a.deps.Store.DeviceExists(r.Context(), in.DeviceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, "Device not found")
		return
	}

	if in.ActionConfig == nil {
		in.ActionConfig = map[string]any{}
	}
	now := time.Now().UTC()
	binding := model.Binding{
		ID:           uuid.NewString(),
		DeviceID:     in.DeviceID,
		Capability:   in.Capability,
		ActionType:   in.ActionType,
		ActionConfig: in.ActionConfig,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.deps.Store.CreateBinding(r.Context(), binding); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": binding.ID})
}

func (a *API) UpdateBinding(w http.ResponseWriter, r *http.Request, id string) {
	var in bindingUpdateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	err := a.deps.Store.UpdateBinding(r.Context(), id, in.Capability, in.ActionType, in.ActionConfig)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) DeleteBinding(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.deps.Store.DeleteBinding(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
