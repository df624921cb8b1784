// Package transport abstracts the byte-stream detail of reading and
// writing one wire.Message at a time, so the interactor can run identically
// over a raw TCP/TLS socket or a WebSocket connection.
package transport

import (
	"net"
	"time"

	"github.com/gorilla/websocket"

	"github.com/squawkbus/squawkbus/internal/wire"
)

// Pump timing, adapted from the teacher's websocket Client pump constants
// (internal/streaming/websocket.go): pings go out every pingPeriod, and a
// WebSocket whose peer sends no pong within pongWait of the previous one
// (so a single unanswered ping) hits its read deadline and is presumed dead.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // 1MiB; smaller than wire.MaxFrameSize, generous for typical payloads
)

// Transport reads and writes one Message at a time over an underlying
// connection, hiding whether that connection is a length-prefixed byte
// stream or a WebSocket.
type Transport interface {
	ReadMessage() (wire.Message, error)
	WriteMessage(wire.Message) error
	RemoteHost() string
	Close() error
}

// Pinger is implemented by transports that need an application-driven
// keepalive (WebSocket); the interactor type-asserts for it so callers
// don't need transport-specific branching.
type Pinger interface {
	WritePing() error
	PingPeriod() time.Duration
}

// Plain implements Transport over a raw net.Conn (TCP or TLS) using the
// wire package's length-prefixed framing.
type Plain struct {
	conn net.Conn
}

// NewPlain wraps conn as a Transport.
func NewPlain(conn net.Conn) *Plain {
	return &Plain{conn: conn}
}

// ReadMessage blocks until a full frame has been read and decoded.
func (p *Plain) ReadMessage() (wire.Message, error) {
	return wire.ReadFrame(p.conn)
}

// WriteMessage encodes and writes msg as a single frame, applying a write
// deadline so a stalled peer cannot wedge the interactor forever.
func (p *Plain) WriteMessage(msg wire.Message) error {
	if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return wire.WriteFrame(p.conn, msg)
}

// RemoteHost returns the IP portion of the peer's address.
func (p *Plain) RemoteHost() string {
	return remoteHost(p.conn.RemoteAddr())
}

// Close closes the underlying connection.
func (p *Plain) Close() error {
	return p.conn.Close()
}

// WebSocket implements Transport over a *websocket.Conn: every Message is
// exactly one binary frame, so no additional length prefix is needed (the
// WebSocket framing already delimits it).
type WebSocket struct {
	conn *websocket.Conn
}

// NewWebSocket wraps conn as a Transport, installing the teacher's
// ping/pong keepalive pattern (read deadline refreshed on every pong).
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &WebSocket{conn: conn}
}

// ReadMessage reads one binary WebSocket frame and decodes it.
func (w *WebSocket) ReadMessage() (wire.Message, error) {
	_, body, err := w.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return wire.Decode(body)
}

// WriteMessage encodes msg and writes it as one binary WebSocket frame.
func (w *WebSocket) WriteMessage(msg wire.Message) error {
	body, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.BinaryMessage, body)
}

// WritePing sends a WebSocket ping frame; callers should do this every
// pingPeriod to keep the connection's read deadline alive at the peer.
func (w *WebSocket) WritePing() error {
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.PingMessage, nil)
}

// PingPeriod returns the interval callers should use to drive WritePing.
func (w *WebSocket) PingPeriod() time.Duration {
	return pingPeriod
}

// RemoteHost returns the IP portion of the peer's address.
func (w *WebSocket) RemoteHost() string {
	return remoteHost(w.conn.RemoteAddr())
}

// Close closes the underlying WebSocket connection.
func (w *WebSocket) Close() error {
	return w.conn.Close()
}

func remoteHost(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
