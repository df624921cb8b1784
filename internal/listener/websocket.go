package listener

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/squawkbus/squawkbus/internal/authn"
	"github.com/squawkbus/squawkbus/internal/hubapi"
	"github.com/squawkbus/squawkbus/internal/interactor"
	"github.com/squawkbus/squawkbus/internal/logging"
	"github.com/squawkbus/squawkbus/internal/ratelimit"
	"github.com/squawkbus/squawkbus/internal/transport"
)

// WebSocket serves the broker's wire protocol over a WebSocket upgrade
// endpoint, for clients (typically browsers) that cannot open a raw TCP
// socket.
type WebSocket struct {
	upgrader  websocket.Upgrader
	authn     *authn.Manager
	throttle  ratelimit.Throttle
	hubEvents chan<- hubapi.ClientEvent
	logger    *slog.Logger
	bufSize   int
}

// NewWebSocket returns an http.Handler suitable for mounting at the
// WebSocket listen endpoint. It accepts any request origin: the broker's
// own entitlement model, not same-origin policy, is the authorization
// boundary.
func NewWebSocket(authnMgr *authn.Manager, throttle ratelimit.Throttle, hubEvents chan<- hubapi.ClientEvent, bufSize int, logger *slog.Logger) *WebSocket {
	return &WebSocket{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		authn:     authnMgr,
		throttle:  throttle,
		hubEvents: hubEvents,
		logger:    logger,
		bufSize:   bufSize,
	}
}

func (h *WebSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	id := uuid.NewString()
	t := transport.NewWebSocket(conn)
	host := t.RemoteHost()
	connLogger := logging.WithConnection(h.logger, id, host)

	if allowed, aerr := h.throttle.Allow(r.Context(), host); aerr != nil {
		connLogger.Warn("rate limit check failed", "error", aerr)
	} else if !allowed {
		connLogger.Warn("rejecting connection: too many recent authentication failures")
		conn.Close()
		return
	}

	it := interactor.New(id, t, h.authn, connLogger, interactor.WithEventBufferSize(h.bufSize))
	if err := it.Run(r.Context(), h.hubEvents); err != nil {
		if errors.Is(err, interactor.ErrAuthenticationFailed) {
			if rerr := h.throttle.RecordFailure(r.Context(), host); rerr != nil {
				connLogger.Warn("recording auth failure", "error", rerr)
			}
		}
		connLogger.Warn("interactor exited", "error", err)
	}
}

// ListenWebSocket starts a plain HTTP server serving the WebSocket upgrade
// endpoint at "/" and returns it so the caller can Shutdown it.
func ListenWebSocket(ctx context.Context, addr string, authnMgr *authn.Manager, throttle ratelimit.Throttle, hubEvents chan<- hubapi.ClientEvent, bufSize int, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/", NewWebSocket(authnMgr, throttle, hubEvents, bufSize, logger))

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Info("websocket server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("websocket server error", "error", err)
		}
	}()
	return srv
}
