// Package interactor drives one client connection through the
// Handshaking -> Running -> Closing state machine: authenticate, register
// with the hub, then pump messages between the transport and the hub until
// either side closes.
package interactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/squawkbus/squawkbus/internal/authn"
	"github.com/squawkbus/squawkbus/internal/hubapi"
	"github.com/squawkbus/squawkbus/internal/transport"
	"github.com/squawkbus/squawkbus/internal/wire"
)

// DefaultEventBufferSize is the capacity of a client's outbound event
// channel: the hub blocks (baseline backpressure policy) once a slow
// client's buffer fills rather than dropping messages.
const DefaultEventBufferSize = 32

// ErrAuthenticationFailed marks a handshake failure caused by bad
// credentials, as distinct from a transport read error. Callers use this to
// decide whether a failed connection should count against a host's
// rate-limit budget.
var ErrAuthenticationFailed = errors.New("interactor: authentication failed")

// Interactor owns one client connection for its whole lifetime.
type Interactor struct {
	id         string
	transport  transport.Transport
	authn      *authn.Manager
	logger     *slog.Logger
	bufferSize int
}

// Option configures an Interactor at construction time.
type Option func(*Interactor)

// WithEventBufferSize overrides the capacity of the client's outbound event
// channel. Zero or negative values are ignored and DefaultEventBufferSize
// applies instead.
func WithEventBufferSize(size int) Option {
	return func(i *Interactor) {
		if size > 0 {
			i.bufferSize = size
		}
	}
}

// New returns an Interactor for a freshly accepted connection. id should be
// unique for the lifetime of the broker process (e.g. a UUID).
func New(id string, t transport.Transport, authnMgr *authn.Manager, logger *slog.Logger, opts ...Option) *Interactor {
	i := &Interactor{id: id, transport: t, authn: authnMgr, logger: logger, bufferSize: DefaultEventBufferSize}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run blocks until the connection ends, authenticating the client, then
// registering it with the hub and pumping messages both ways. It always
// sends exactly one hubapi.Close event before returning, provided
// registration succeeded.
func (i *Interactor) Run(ctx context.Context, hubEvents chan<- hubapi.ClientEvent) error {
	user, err := i.handshake()
	if err != nil {
		i.logger.Warn("interactor: handshake failed", "client_id", i.id, "error", err)
		return err
	}

	out := make(chan hubapi.ServerEvent, i.bufferSize)
	hubEvents <- hubapi.Connect{
		ClientID: i.id,
		Host:     i.transport.RemoteHost(),
		User:     user,
		Events:   out,
	}
	defer func() { hubEvents <- hubapi.Close{ClientID: i.id} }()

	return i.pump(ctx, hubEvents, out)
}

func (i *Interactor) handshake() (string, error) {
	msg, err := i.transport.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("interactor: reading authentication request: %w", err)
	}

	req, ok := msg.(wire.AuthenticationRequest)
	if !ok {
		return "", fmt.Errorf("interactor: expected AuthenticationRequest, got %T", msg)
	}

	user, err := i.authn.Authenticate(req.Method, req.Credentials)
	if err != nil {
		// No response is written on failure: the connection is simply
		// closed by the caller.
		return "", fmt.Errorf("interactor: authentication failed: %w: %w", ErrAuthenticationFailed, err)
	}

	if err := i.transport.WriteMessage(wire.AuthenticationResponse{ClientID: i.id}); err != nil {
		return "", fmt.Errorf("interactor: writing authentication response: %w", err)
	}

	return user, nil
}

func (i *Interactor) pump(ctx context.Context, hubEvents chan<- hubapi.ClientEvent, out <-chan hubapi.ServerEvent) error {
	inbound := make(chan wire.Message)
	readErr := make(chan error, 1)

	go func() {
		for {
			msg, err := i.transport.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case inbound <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	var pingTick <-chan time.Time
	if pinger, ok := i.transport.(transport.Pinger); ok {
		ticker := time.NewTicker(pinger.PingPeriod())
		defer ticker.Stop()
		pingTick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readErr:
			return err

		case msg := <-inbound:
			hubEvents <- hubapi.Inbound{ClientID: i.id, Message: msg}

		case evt := <-out:
			outbound, ok := evt.(hubapi.Outbound)
			if !ok {
				i.logger.Warn("interactor: unrecognized server event", "client_id", i.id, "type", fmt.Sprintf("%T", evt))
				continue
			}
			if err := i.transport.WriteMessage(outbound.Message); err != nil {
				return fmt.Errorf("interactor: writing message: %w", err)
			}

		case <-pingTick:
			if err := i.transport.(transport.Pinger).WritePing(); err != nil {
				return fmt.Errorf("interactor: writing ping: %w", err)
			}
		}
	}
}
