package interactor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squawkbus/squawkbus/internal/authn"
	"github.com/squawkbus/squawkbus/internal/hubapi"
	"github.com/squawkbus/squawkbus/internal/wire"
)

type fakeTransport struct {
	mu       sync.Mutex
	toRead   []wire.Message
	readIdx  int
	written  []wire.Message
	readErr  error
	blockErr chan struct{}
}

func newFakeTransport(toRead ...wire.Message) *fakeTransport {
	return &fakeTransport{toRead: toRead, blockErr: make(chan struct{})}
}

func (f *fakeTransport) ReadMessage() (wire.Message, error) {
	f.mu.Lock()
	if f.readIdx < len(f.toRead) {
		msg := f.toRead[f.readIdx]
		f.readIdx++
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()

	if f.readErr != nil {
		return nil, f.readErr
	}
	<-f.blockErr // block until the test closes this to simulate disconnect
	return nil, io.EOF
}

func (f *fakeTransport) WriteMessage(msg wire.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, msg)
	return nil
}

func (f *fakeTransport) RemoteHost() string { return "10.0.0.9" }
func (f *fakeTransport) Close() error       { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunAuthenticatesRegistersAndPumps(t *testing.T) {
	ft := newFakeTransport(
		wire.AuthenticationRequest{Method: authn.MethodNone},
		wire.SubscriptionRequest{Topic: "quote.MSFT", IsAdd: true},
	)
	defer close(ft.blockErr)

	authnMgr := authn.New(nil, nil)
	interactorInst := New("c1", ft, authnMgr, testLogger())

	hubEvents := make(chan hubapi.ClientEvent, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- interactorInst.Run(ctx, hubEvents) }()

	connect := (<-hubEvents).(hubapi.Connect)
	assert.Equal(t, "c1", connect.ClientID)
	assert.Equal(t, "nobody", connect.User)
	assert.Equal(t, "10.0.0.9", connect.Host)

	inbound := (<-hubEvents).(hubapi.Inbound)
	assert.Equal(t, wire.SubscriptionRequest{Topic: "quote.MSFT", IsAdd: true}, inbound.Message)

	connect.Events <- hubapi.Outbound{Message: wire.ForwardedSubscriptionRequest{Topic: "quote.MSFT", Count: 1}}

	require.Eventually(t, func() bool {
		ft.mu.Lock()
		defer ft.mu.Unlock()
		return len(ft.written) == 2 // AuthenticationResponse + the forwarded notification
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-runDone

	closeEvt := (<-hubEvents).(hubapi.Close)
	assert.Equal(t, "c1", closeEvt.ClientID)
}

func TestRunFailsHandshakeOnAuthenticationError(t *testing.T) {
	ft := newFakeTransport(wire.AuthenticationRequest{Method: "bogus"})
	defer close(ft.blockErr)

	authnMgr := authn.New(nil, nil)
	interactorInst := New("c1", ft, authnMgr, testLogger())

	hubEvents := make(chan hubapi.ClientEvent, 1)
	err := interactorInst.Run(context.Background(), hubEvents)
	assert.Error(t, err)

	ft.mu.Lock()
	defer ft.mu.Unlock()
	assert.Empty(t, ft.written) // no AuthenticationResponse on failure
}

func TestRunFailsHandshakeOnUnexpectedFirstMessage(t *testing.T) {
	ft := newFakeTransport(wire.SubscriptionRequest{Topic: "x", IsAdd: true})
	defer close(ft.blockErr)

	authnMgr := authn.New(nil, nil)
	interactorInst := New("c1", ft, authnMgr, testLogger())

	hubEvents := make(chan hubapi.ClientEvent, 1)
	err := interactorInst.Run(context.Background(), hubEvents)
	assert.Error(t, err)
}
