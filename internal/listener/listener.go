package listener

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/squawkbus/squawkbus/internal/authn"
	"github.com/squawkbus/squawkbus/internal/authz"
	"github.com/squawkbus/squawkbus/internal/hubapi"
	"github.com/squawkbus/squawkbus/internal/ratelimit"
)

// Server bundles the three listening surfaces (plain, WebSocket, admin)
// plus the reload hooks SIGHUP drives.
type Server struct {
	Plain    *Plain
	WS       *http.Server
	Admin    *http.Server
	authn    *authn.Manager
	authz    *authz.Manager
	throttle ratelimit.Throttle
	logger   *slog.Logger

	wsEndpoint string
	bufSize    int

	htpasswdFile string
	authzFile    string
}

// Config carries everything needed to stand up a Server.
type Config struct {
	PlainEndpoint     string
	WebSocketEndpoint string
	AdminEndpoint     string
	TLSCertFile       string
	TLSKeyFile        string
	EventBufferSize   int
	HtpasswdFile      string
	AuthorizationFile string
}

// New binds the plain listener and starts the admin server. The WebSocket
// server is started by Serve, which callers must call to begin accepting
// connections.
func New(cfg Config, authnMgr *authn.Manager, authzMgr *authz.Manager, throttle ratelimit.Throttle, logger *slog.Logger) (*Server, error) {
	plain, err := ListenPlain(cfg.PlainEndpoint, cfg.TLSCertFile, cfg.TLSKeyFile, authnMgr, throttle, cfg.EventBufferSize, logger)
	if err != nil {
		return nil, err
	}

	return &Server{
		Plain:        plain,
		Admin:        StartAdmin(cfg.AdminEndpoint, logger),
		authn:        authnMgr,
		authz:        authzMgr,
		throttle:     throttle,
		logger:       logger,
		wsEndpoint:   cfg.WebSocketEndpoint,
		bufSize:      cfg.EventBufferSize,
		htpasswdFile: cfg.HtpasswdFile,
		authzFile:    cfg.AuthorizationFile,
	}, nil
}

// Serve blocks, accepting plain connections and serving the WebSocket
// endpoint until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, hubEvents chan<- hubapi.ClientEvent) {
	s.WS = ListenWebSocket(ctx, s.wsEndpoint, s.authn, s.throttle, hubEvents, s.bufSize, s.logger)
	s.Plain.Serve(ctx, hubEvents)
}

// Reload re-reads the htpasswd and authorization files (if configured) and
// applies them: the htpasswd table is swapped in place, and an
// hubapi.Reset event is sent to the hub so it atomically replaces its
// authorization specs. This is the handler for SIGHUP.
func (s *Server) Reload(hubEvents chan<- hubapi.ClientEvent) {
	if s.htpasswdFile != "" {
		table, err := authn.LoadHtpasswd(s.htpasswdFile)
		if err != nil {
			s.logger.Warn("reload: htpasswd load failed", "error", err)
		} else {
			s.authn.ReloadHtpasswd(table)
			s.logger.Info("reload: htpasswd table replaced", "entries", len(table))
		}
	}

	specs, err := authz.LoadSpecs(s.authzFile, nil)
	if err != nil {
		s.logger.Warn("reload: authorization load failed", "error", err)
		return
	}
	hubEvents <- hubapi.Reset{Specs: specs}
	s.logger.Info("reload: authorization specs submitted", "count", len(specs))
}

// Shutdown gracefully stops all three listening surfaces.
func (s *Server) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	_ = s.Plain.Close()
	if s.WS != nil {
		_ = s.WS.Shutdown(shutdownCtx)
	}
	if s.Admin != nil {
		_ = s.Admin.Shutdown(shutdownCtx)
	}
}
