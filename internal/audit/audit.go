// Package audit optionally publishes hub lifecycle events (client
// connect/disconnect, authorization reload, listener startup) to a NATS
// subject for external ops tooling. It never carries routed message
// traffic or subscription state, so enabling it does not reintroduce
// message persistence or cluster federation.
package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Event is one lifecycle notice published to the audit subject.
type Event struct {
	Kind     string            `json:"kind"`
	ClientID string            `json:"client_id,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// Sink publishes Events to NATS. A nil *Sink is valid and Publish becomes a
// no-op, so callers can leave auditing disabled without branching.
type Sink struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// Dial connects to url and returns a Sink publishing to subject. Connection
// loss is retried in the background by the nats.go client itself.
func Dial(url, subject string, logger *slog.Logger) (*Sink, error) {
	conn, err := nats.Connect(url,
		nats.Name("squawkbus-audit"),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("audit: connecting to nats: %w", err)
	}
	return &Sink{conn: conn, subject: subject, logger: logger}, nil
}

// Publish serializes and publishes evt. A nil Sink silently drops the
// event. Publish errors are logged, not returned, since the audit trail is
// explicitly best-effort and must never block routing.
func (s *Sink) Publish(evt Event) {
	if s == nil {
		return
	}
	body, err := json.Marshal(evt)
	if err != nil {
		s.logger.Warn("audit: marshal failed", "error", err)
		return
	}
	if err := s.conn.Publish(s.subject, body); err != nil {
		s.logger.Warn("audit: publish failed", "error", err)
	}
}

// Close closes the underlying NATS connection without draining it. A nil
// Sink is a no-op.
func (s *Sink) Close() {
	if s == nil {
		return
	}
	s.conn.Close()
}
