package handlers

import (
	"net/http"
	"strings"
)

type stationCommandInput struct {
	DeviceID string   `json:"deviceId"`
	Command  string   `json:"command"`
	Text     *string  `json:"text,omitempty"`
	Volume   *float64 `json:"volume,omitempty"`
	Position *int     `json:"position,omitempty"`
}

// StationCommand accepts a station command on the local relay-shaped
// endpoint and acknowledges it. A LAN speaker protocol can replace the echo
// without changing the contract.
func (a *API) StationCommand(w http.ResponseWriter, r *http.Request) {
	var in stationCommandInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if strings.TrimSpace(in.DeviceID) == "" || strings.TrimSpace(in.Command) == "" {
		writeError(w, http.StatusBadRequest, "deviceId and command are required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "echo": in})
}
