// Package listener wires the broker's network surface: the plain
// length-prefixed TCP/TLS listener, the WebSocket upgrade endpoint, and an
// internal-only admin HTTP server exposing /healthz and /metrics.
package listener

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/squawkbus/squawkbus/internal/api"
	"github.com/squawkbus/squawkbus/internal/api/middleware"
)

// NewAdminRouter builds the admin HTTP surface. Unlike the public API
// surface this teacher's router evolved from, the admin surface has no
// tenant or bearer-token authentication: it is expected to bind to a
// loopback or private interface, and client authentication for the actual
// pub/sub protocol happens at the wire layer via internal/authn.
func NewAdminRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.LoggingMiddleware)
	r.Use(middleware.CORSMiddleware([]string{"*"}))

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/healthz", handleHealthz).Methods(http.MethodGet, http.MethodOptions)

	return r
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StartAdmin starts the admin HTTP server in the background and returns it
// so the caller can Shutdown it during graceful termination.
func StartAdmin(addr string, logger *slog.Logger) *http.Server {
	srv := &http.Server{
		Addr:    addr,
		Handler: NewAdminRouter(),
	}
	go func() {
		logger.Info("admin server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin server error", "error", err)
		}
	}()
	return srv
}
