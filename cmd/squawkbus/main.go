// Command squawkbus runs the pub/sub message broker: a single hub goroutine
// routes topic-based publications and unicast messages between clients
// connected over length-prefixed TCP/TLS or WebSocket.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/squawkbus/squawkbus/internal/audit"
	"github.com/squawkbus/squawkbus/internal/authn"
	"github.com/squawkbus/squawkbus/internal/authz"
	"github.com/squawkbus/squawkbus/internal/config"
	"github.com/squawkbus/squawkbus/internal/hub"
	"github.com/squawkbus/squawkbus/internal/hubapi"
	"github.com/squawkbus/squawkbus/internal/listener"
	"github.com/squawkbus/squawkbus/internal/logging"
	"github.com/squawkbus/squawkbus/internal/metrics"
	"github.com/squawkbus/squawkbus/internal/ratelimit"
	"github.com/squawkbus/squawkbus/internal/version"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting squawkbus", "version", version.String(),
		"listen", cfg.PlainEndpoint, "websocket", cfg.WebSocketEndpoint, "admin", cfg.AdminEndpoint)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Authorization ---
	specs, err := authz.LoadSpecs(cfg.AuthorizationFile, nil)
	if err != nil {
		logger.Error("failed to load authorization specs", "error", err)
		os.Exit(1)
	}
	authzMgr := authz.NewManager(specs)

	// --- Authentication ---
	var htpasswd map[string][]byte
	if cfg.HtpasswdFile != "" {
		htpasswd, err = authn.LoadHtpasswd(cfg.HtpasswdFile)
		if err != nil {
			logger.Error("failed to load htpasswd file", "error", err)
			os.Exit(1)
		}
	}
	var ldapCfg *authn.LDAPConfig
	if cfg.LDAPEnabled() {
		ldapCfg = &authn.LDAPConfig{
			URL:            cfg.LDAPURL,
			UserDNTemplate: cfg.LDAPUserDNTemplate,
			StartTLS:       cfg.LDAPStartTLS,
		}
	}
	authnMgr := authn.New(htpasswd, ldapCfg)

	// --- Metrics ---
	promMetrics := metrics.New(prometheus.DefaultRegisterer, cfg.MetricsNamespace)

	// --- Optional audit sink ---
	var auditSink *audit.Sink
	if cfg.AuditEnabled() {
		auditSink, err = audit.Dial(cfg.NATSURL, cfg.AuditSubject, logger)
		if err != nil {
			logger.Warn("audit sink unavailable; continuing without it", "error", err)
			auditSink = nil
		} else {
			defer auditSink.Close()
		}
	}

	// --- Auth throttle: Redis-backed when configured, in-process otherwise ---
	var throttle ratelimit.Throttle
	if cfg.RedisThrottleEnabled() {
		opts, perr := redis.ParseURL(cfg.RedisURL)
		if perr != nil {
			logger.Warn("invalid redis-url; falling back to in-process throttle", "error", perr)
			throttle = ratelimit.NewInProcess(ratelimit.DefaultConfig())
		} else {
			throttle = ratelimit.NewRedis(redis.NewClient(opts), ratelimit.DefaultConfig())
		}
	} else {
		throttle = ratelimit.NewInProcess(ratelimit.DefaultConfig())
	}

	// --- Hub ---
	h := hub.New(authzMgr, logger, hub.WithMetrics(promMetrics), hub.WithAudit(auditSink))
	hubEvents := make(chan hubapi.ClientEvent, 256)
	go h.Run(ctx, hubEvents)

	// --- Listeners ---
	srv, err := listener.New(listener.Config{
		PlainEndpoint:     cfg.PlainEndpoint,
		WebSocketEndpoint: cfg.WebSocketEndpoint,
		AdminEndpoint:     cfg.AdminEndpoint,
		TLSCertFile:       cfg.TLSCertFile,
		TLSKeyFile:        cfg.TLSKeyFile,
		EventBufferSize:   cfg.EventBufferSize,
		HtpasswdFile:      cfg.HtpasswdFile,
		AuthorizationFile: cfg.AuthorizationFile,
	}, authnMgr, authzMgr, throttle, logger)
	if err != nil {
		logger.Error("failed to start listeners", "error", err)
		os.Exit(1)
	}

	go srv.Serve(ctx, hubEvents)
	auditSink.Publish(audit.Event{Kind: "listener.started"})

	// --- Signal handling: SIGHUP reloads, SIGINT/SIGTERM shuts down ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			logger.Info("received SIGHUP, reloading")
			srv.Reload(hubEvents)
			continue
		}
		logger.Info("received shutdown signal", "signal", sig)
		break
	}

	cancel()
	srv.Shutdown(context.Background())
	logger.Info("squawkbus stopped")
}
