package listener

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"

	"github.com/google/uuid"

	"github.com/squawkbus/squawkbus/internal/authn"
	"github.com/squawkbus/squawkbus/internal/hubapi"
	"github.com/squawkbus/squawkbus/internal/interactor"
	"github.com/squawkbus/squawkbus/internal/logging"
	"github.com/squawkbus/squawkbus/internal/ratelimit"
	"github.com/squawkbus/squawkbus/internal/transport"
)

// Plain accepts length-prefixed TCP or TLS connections and spawns one
// interactor per accepted connection.
type Plain struct {
	listener net.Listener
	authn    *authn.Manager
	throttle ratelimit.Throttle
	logger   *slog.Logger
	bufSize  int
}

// ListenPlain opens addr for length-prefixed TCP connections. If certFile
// and keyFile are both non-empty, the listener terminates TLS.
func ListenPlain(addr, certFile, keyFile string, authnMgr *authn.Manager, throttle ratelimit.Throttle, bufSize int, logger *slog.Logger) (*Plain, error) {
	var ln net.Listener
	var err error

	if certFile != "" && keyFile != "" {
		cert, lerr := tls.LoadX509KeyPair(certFile, keyFile)
		if lerr != nil {
			return nil, lerr
		}
		ln, err = tls.Listen("tcp", addr, &tls.Config{Certificates: []tls.Certificate{cert}})
	} else {
		ln, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return nil, err
	}

	return &Plain{listener: ln, authn: authnMgr, throttle: throttle, logger: logger, bufSize: bufSize}, nil
}

// Serve accepts connections until ctx is cancelled or the listener closes.
func (p *Plain) Serve(ctx context.Context, hubEvents chan<- hubapi.ClientEvent) {
	go func() {
		<-ctx.Done()
		p.listener.Close()
	}()

	for {
		conn, err := p.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				p.logger.Warn("accept error", "error", err)
				return
			}
		}

		go p.handle(ctx, conn, hubEvents)
	}
}

func (p *Plain) handle(ctx context.Context, conn net.Conn, hubEvents chan<- hubapi.ClientEvent) {
	id := uuid.NewString()
	t := transport.NewPlain(conn)
	host := t.RemoteHost()
	connLogger := logging.WithConnection(p.logger, id, host)

	if allowed, err := p.throttle.Allow(ctx, host); err != nil {
		connLogger.Warn("rate limit check failed", "error", err)
	} else if !allowed {
		connLogger.Warn("rejecting connection: too many recent authentication failures")
		conn.Close()
		return
	}

	it := interactor.New(id, t, p.authn, connLogger, interactor.WithEventBufferSize(p.bufSize))
	if err := it.Run(ctx, hubEvents); err != nil {
		if errors.Is(err, interactor.ErrAuthenticationFailed) {
			if rerr := p.throttle.RecordFailure(ctx, host); rerr != nil {
				connLogger.Warn("recording auth failure", "error", rerr)
			}
		}
		connLogger.Warn("interactor exited", "error", err)
	}
}

// Close stops accepting new connections.
func (p *Plain) Close() error {
	return p.listener.Close()
}
