package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/badkiko/y2m/internal/crypto"
	"github.com/badkiko/y2m/internal/model"
	"github.com/badkiko/y2m/internal/oauth"
	"github.com/badkiko/y2m/internal/provider"
	"github.com/badkiko/y2m/internal/storage"
)

type providerDeviceRef struct {
	ID string `json:"id"`
}

type providerQueryRequest struct {
	Devices []providerDeviceRef `json:"devices"`
}

type providerActionRequest struct {
	Devices []struct {
		ID           string `json:"id"`
		Capabilities []struct {
			Type  string `json:"type"`
			State struct {
				Instance string `json:"instance"`
				Value    any    `json:"value"`
			} `json:"state"`
		} `json:"capabilities"`
	} `json:"devices"`
}

// ProviderHealth answers the skill's endpoint availability probe.
func (a *API) ProviderHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{})
}

// authenticateBearer resolves the stored account token matching the bearer
// credential by hash. Legacy rows without a hash were backfilled at startup,
// so the lookup never needs to decrypt.
func (a *API) authenticateBearer(r *http.Request) (model.UserToken, bool) {
	header := r.Header.Get("Authorization")
	bearer, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(bearer) == "" {
		return model.UserToken{}, false
	}
	token, err := a.deps.Store.TokenByHash(r.Context(), oauth.ProviderYandex, crypto.HashToken(bearer))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			a.deps.Logger.Error("bearer token lookup failed", "err", err)
		}
		return model.UserToken{}, false
	}
	return token, true
}

func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-Id"); id != "" {
		return id
	}
	return uuid.NewString()
}

// ProviderDevices lists every device in the Yandex descriptor shape.
func (a *API) ProviderDevices(w http.ResponseWriter, r *http.Request) {
	token, ok := a.authenticateBearer(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	devices, err := a.deps.Store.ListDevices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	descriptors := make([]map[string]any, 0, len(devices))
	for _, device := range devices {
		descriptors = append(descriptors, map[string]any{
			"id":           device.ID,
			"name":         device.Name,
			"type":         device.YandexType,
			"capabilities": a.deps.Catalog.CapabilitiesFor(device.YandexType),
			"device_info": map[string]string{
				"manufacturer": "Y2M",
				"model":        device.Name,
				"hw_version":   "1.0",
				"sw_version":   "1.0",
			},
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"request_id": requestID(r),
		"payload": map[string]any{
			"user_id": token.UserID,
			"devices": descriptors,
		},
	})
}

// ProviderQuery reports a per-capability state snapshot for each requested
// device. Unknown ids are skipped rather than failing the batch.
func (a *API) ProviderQuery(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.authenticateBearer(r); !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req providerQueryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	devices := make([]map[string]any, 0, len(req.Devices))
	for _, ref := range req.Devices {
		device, err := a.deps.Store.GetDevice(r.Context(), ref.ID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		devices = append(devices, map[string]any{
			"id":           ref.ID,
			"capabilities": a.deps.Catalog.SnapshotState(device.YandexType),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"request_id": requestID(r),
		"payload":    map[string]any{"devices": devices},
	})
}

// ProviderAction applies each requested capability change by resolving the
// matching binding and invoking it through the dispatcher.
func (a *API) ProviderAction(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.authenticateBearer(r); !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req providerActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	results := make([]map[string]any, 0, len(req.Devices))
	for _, deviceReq := range req.Devices {
		if _, err := a.deps.Store.GetDevice(r.Context(), deviceReq.ID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				results = append(results, map[string]any{
					"id":            deviceReq.ID,
					"error_code":    "DEVICE_NOT_FOUND",
					"error_message": "Device not found",
				})
				continue
			}
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		capResults := make([]map[string]any, 0, len(deviceReq.Capabilities))
		for _, capReq := range deviceReq.Capabilities {
			instance := capReq.State.Instance
			if instance == "" {
				switch capReq.Type {
				case provider.CapOnOff:
					instance = "on"
				case provider.CapRange:
					instance = "brightness"
				}
			}

			switch capReq.Type {
			case provider.CapOnOff, provider.CapRange:
				capResults = append(capResults, a.applyCapability(r, deviceReq.ID, capReq.Type, instance, capReq.State.Value))
			default:
				// Unknown capability types are acknowledged as an
				// on_off-shaped success instead of failing the batch.
				capResults = append(capResults, map[string]any{
					"type": capReq.Type,
					"state": map[string]any{
						"instance":      "on",
						"action_result": map[string]any{"status": "DONE"},
					},
				})
			}
		}
		results = append(results, map[string]any{"id": deviceReq.ID, "capabilities": capResults})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"request_id": requestID(r),
		"payload":    map[string]any{"devices": results},
	})
}

func (a *API) applyCapability(r *http.Request, deviceID, capType, instance string, value any) map[string]any {
	actionResult := map[string]any{"status": "DONE"}

	binding, err := a.deps.Store.FindBinding(r.Context(), deviceID, instance)
	switch {
	case err == nil:
		payload := map[string]any{
			"value":      value,
			"capability": capType,
			"instance":   instance,
			"device_id":  deviceID,
		}
		result, invokeErr := a.deps.Dispatcher.Invoke(r.Context(), binding.ID, payload)
		if invokeErr != nil || !result.OK {
			message := result.Error
			if invokeErr != nil {
				message = invokeErr.Error()
			}
			actionResult = map[string]any{
				"status":        "ERROR",
				"error_code":    "ACTION_ERROR",
				"error_message": message,
			}
		}
	case errors.Is(err, storage.ErrNotFound):
		// No binding configured for this capability; acknowledge without a
		// side effect so the skill does not surface a spurious failure.
		a.deps.Logger.Debug("no binding for capability", "device", deviceID, "instance", instance)
	default:
		actionResult = map[string]any{
			"status":        "ERROR",
			"error_code":    "INTERNAL_ERROR",
			"error_message": err.Error(),
		}
	}

	return map[string]any{
		"type": capType,
		"state": map[string]any{
			"instance":      instance,
			"action_result": actionResult,
		},
	}
}

// ProviderUnlink removes the stored tokens for the authenticated account.
func (a *API) ProviderUnlink(w http.ResponseWriter, r *http.Request) {
	token, ok := a.authenticateBearer(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err := a.deps.Store.DeleteTokens(r.Context(), oauth.ProviderYandex, token.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	a.deps.Logger.Info("account unlinked", "user", token.UserID)
	writeJSON(w, http.StatusOK, map[string]any{
		"request_id": requestID(r),
		"payload":    map[string]any{"user_id": token.UserID, "status": "ok"},
	})
}

// ProviderDevicesUnlink deletes the listed devices with their bindings.
// Missing devices produce typed DEVICE_NOT_FOUND entries, not HTTP errors.
func (a *API) ProviderDevicesUnlink(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.authenticateBearer(r); !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req providerQueryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	results := make([]map[string]any, 0, len(req.Devices))
	for _, ref := range req.Devices {
		entry := map[string]any{"id": ref.ID, "status": "ok"}
		if err := a.deps.Store.DeleteDevice(r.Context(), ref.ID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				entry = map[string]any{
					"id":            ref.ID,
					"error_code":    "DEVICE_NOT_FOUND",
					"error_message": "Device not found",
				}
			} else {
				writeError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
		}
		results = append(results, entry)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"request_id": requestID(r),
		"payload":    map[string]any{"devices": results},
	})
}
