package transport

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squawkbus/squawkbus/internal/wire"
)

func TestPlainRoundTrip(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	server := NewPlain(serverConn)
	client := NewPlain(clientConn)

	msg := wire.SubscriptionRequest{Topic: "quote.MSFT", IsAdd: true}

	done := make(chan error, 1)
	go func() { done <- server.WriteMessage(msg) }()

	got, err := client.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Equal(t, msg, got)
}

func TestRemoteHostExtractsIPFromHostPort(t *testing.T) {
	assert.Equal(t, "192.168.1.1", remoteHost(&net.TCPAddr{IP: net.ParseIP("192.168.1.1"), Port: 4222}))
}

func TestRemoteHostHandlesNilAddr(t *testing.T) {
	assert.Equal(t, "", remoteHost(nil))
}
