package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/badkiko/y2m/internal/http/handlers"
)

// NewRouter builds the full HTTP routing tree: operator API, OAuth2 gateway
// and the Yandex provider surface.
func NewRouter(api *handlers.API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RecoverJSON)

	// The websocket endpoint skips the timeout and logging wrappers: the
	// connection is long-lived and the upgrade needs the raw ResponseWriter.
	r.Get("/api/ws", api.WebSocket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(RequestLogger(api))

		r.Get("/healthz", api.Health)

		r.Get("/dialog/authorize", api.Authorize)
		r.Get("/oauth/authorize", api.Authorize)
		r.Post("/oauth/token", api.Token)
		r.Get("/.well-known/oauth-authorization-server", api.Discovery)

		r.Route("/v1.0", func(p chi.Router) {
			p.Head("/", api.ProviderHealth)
			p.Get("/user/devices", api.ProviderDevices)
			p.Post("/user/devices/query", api.ProviderQuery)
			p.Post("/user/devices/action", api.ProviderAction)
			p.Post("/user/unlink", api.ProviderUnlink)
			p.Post("/user/devices/unlink", api.ProviderDevicesUnlink)
		})

		r.Route("/api", func(apiRouter chi.Router) {
			apiRouter.Get("/auth/yandex/login", api.YandexLogin)
			apiRouter.Get("/auth/yandex/callback", api.YandexCallback)
			apiRouter.Get("/auth/yandex/status", api.AuthStatus)

			apiRouter.Get("/devices", api.ListDevices)
			apiRouter.Post("/devices", api.CreateDevice)
			apiRouter.Put("/devices/{id}", func(w http.ResponseWriter, r *http.Request) {
				api.UpdateDevice(w, r, chi.URLParam(r, "id"))
			})
			apiRouter.Delete("/devices/{id}", func(w http.ResponseWriter, r *http.Request) {
				api.DeleteDevice(w, r, chi.URLParam(r, "id"))
			})

			apiRouter.Get("/bindings", api.ListBindings)
			apiRouter.Post("/bindings", api.CreateBinding)
			apiRouter.Put("/bindings/{id}", func(w http.ResponseWriter, r *http.Request) {
				api.UpdateBinding(w, r, chi.URLParam(r, "id"))
			})
			apiRouter.Delete("/bindings/{id}", func(w http.ResponseWriter, r *http.Request) {
				api.DeleteBinding(w, r, chi.URLParam(r, "id"))
			})

			apiRouter.Get("/actions", api.ListActionTypes)
			apiRouter.Post("/actions/test", api.TestAction)
			apiRouter.Get("/device-types", api.ListDeviceTypes)

			apiRouter.Post("/adb/connect", api.ADBConnect)
			apiRouter.Post("/adb/exec", api.ADBExec)
			apiRouter.Post("/adb/disconnect", api.ADBDisconnect)
			apiRouter.Get("/adb/devices", api.ADBDevices)

			apiRouter.Post("/station", api.StationCommand)
		})
	})

	return r
}

// RunServer starts and gracefully stops the HTTP server with context
// cancellation.
func RunServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", "err", err)
			return err
		}
		return nil
	}
}
