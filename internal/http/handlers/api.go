// Package handlers implements the HTTP surface: operator CRUD API, OAuth2
// gateway and the Yandex Smart Home provider endpoints.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/badkiko/y2m/internal/actions"
	"github.com/badkiko/y2m/internal/adb"
	"github.com/badkiko/y2m/internal/crypto"
	"github.com/badkiko/y2m/internal/dispatch"
	"github.com/badkiko/y2m/internal/oauth"
	"github.com/badkiko/y2m/internal/provider"
	"github.com/badkiko/y2m/internal/storage"
	"github.com/badkiko/y2m/internal/ws"
)

// Deps are the long-lived components handlers operate on. All of them are
// constructed once at process start.
type Deps struct {
	Store      *storage.Repository
	Registry   *actions.Registry
	Dispatcher *dispatch.Dispatcher
	Runner     *adb.Runner
	Pool       *adb.Pool
	Catalog    *provider.Catalog
	Upstream   *oauth.Client
	Codes      *oauth.CodeStore
	Tokens     *oauth.TokenService
	Sealer     *crypto.Sealer
	Hub        *ws.Hub

	SkillClientID     string
	SkillClientSecret string
	BaseURL           string
	WebURL            string

	Logger *slog.Logger
}

// API groups HTTP handlers and their dependencies.
type API struct {
	deps Deps
}

func New(deps Deps) *API {
	return &API{deps: deps}
}

// Logger returns the request logger used by HTTP middleware.
func (a *API) Logger() *slog.Logger {
	return a.deps.Logger
}

// Health reports service liveness.
func (a *API) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// WebSocket upgrades the connection and attaches it to the event hub.
func (a *API) WebSocket(w http.ResponseWriter, r *http.Request) {
	a.deps.Hub.Serve(w, r)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError emits the structured error body every endpoint uses.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
