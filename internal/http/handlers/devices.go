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

type deviceInput struct {
	Name       string  `json:"name"`
	YandexType string  `json:"yandex_type"`
	ADBHost    *string `json:"adb_host"`
	ADBPort    *int    `json:"adb_port"`
}

func (in deviceInput) validate() string {
	if strings.TrimSpace(in.Name) == "" {
		return "name is required"
	}
	if strings.TrimSpace(in.YandexType) == "" {
		return "yandex_type is required"
	}
	if in.ADBPort != nil && (*in.ADBPort < 1 || *in.ADBPort > 65535) {
		return "adb_port out of range"
	}
	return ""
}

func (in deviceInput) hasADB() bool {
	return in.ADBHost != nil && strings.TrimSpace(*in.ADBHost) != "" && in.ADBPort != nil
}

func (a *API) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := a.deps.Store.ListDevices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if devices == nil {
		devices = []model.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

func (a *API) CreateDevice(w http.ResponseWriter, r *http.Request) {
	var in deviceInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if msg := in.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	now := time.Now().UTC()
	device := model.Device{
		ID:         uuid.NewString(),
		Name:       in.Name,
		YandexType: in.YandexType,
		ADBHost:    in.ADBHost,
		ADBPort:    in.ADBPort,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := a.deps.Store.CreateDevice(r.Context(), device); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if in.hasADB() {
		a.deps.Pool.TriggerSweep()
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": device.ID})
}

func (a *API) UpdateDevice(w http.ResponseWriter, r *http.Request, id string) {
	var in deviceInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if msg := in.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	device, err := a.deps.Store.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Device not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	device.Name = in.Name
	device.YandexType = in.YandexType
	device.ADBHost = in.ADBHost
	device.ADBPort = in.ADBPort
	if err := a.deps.Store.UpdateDevice(r.Context(), device); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if in.hasADB() {
		a.deps.Pool.TriggerSweep()
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// DeleteDevice removes the device; its bindings go with it.
func (a *API) DeleteDevice(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.deps.Store.DeleteDevice(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Device not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
