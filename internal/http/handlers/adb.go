package handlers

import (
	"net/http"
	"strings"

	"github.com/badkiko/y2m/internal/adb"
)

type adbTarget struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Cmd  string `json:"cmd"`
}

func (t *adbTarget) normalize() string {
	if strings.TrimSpace(t.Host) == "" {
		return "host is required"
	}
	if t.Port == 0 {
		t.Port = 5555
	}
	if t.Port < 1 || t.Port > 65535 {
		return "port out of range"
	}
	return ""
}

func (a *API) ADBConnect(w http.ResponseWriter, r *http.Request) {
	var body adbTarget
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if msg := body.normalize(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	result, err := a.deps.Runner.Connect(r.Context(), body.Host, body.Port)
	a.writeADBResult(w, result, err, "adb connect failed")
}

func (a *API) ADBExec(w http.ResponseWriter, r *http.Request) {
	var body adbTarget
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if msg := body.normalize(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if strings.TrimSpace(body.Cmd) == "" {
		writeError(w, http.StatusBadRequest, "cmd is required")
		return
	}
	result, err := a.deps.Runner.Shell(r.Context(), body.Host, body.Port, body.Cmd)
	a.writeADBResult(w, result, err, "adb shell failed")
}

func (a *API) ADBDisconnect(w http.ResponseWriter, r *http.Request) {
	var body adbTarget
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if msg := body.normalize(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	result, err := a.deps.Runner.Disconnect(r.Context(), body.Host, body.Port)
	a.writeADBResult(w, result, err, "adb disconnect failed")
}

func (a *API) ADBDevices(w http.ResponseWriter, r *http.Request) {
	result, err := a.deps.Runner.Devices(r.Context())
	a.writeADBResult(w, result, err, "adb devices failed")
}

func (a *API) writeADBResult(w http.ResponseWriter, result adb.Result, err error, fallback string) {
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result.TimedOut {
		writeError(w, http.StatusRequestTimeout, "ADB timeout")
		return
	}
	if result.ExitCode != 0 {
		detail := result.FailureMessage()
		if detail == "" {
			detail = fallback
		}
		writeError(w, http.StatusInternalServerError, detail)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "output": result.Stdout})
}
