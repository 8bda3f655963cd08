package handlers

import "net/http"

// ListDeviceTypes serves the bundled device-type capability catalog.
func (a *API) ListDeviceTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.deps.Catalog.All())
}
