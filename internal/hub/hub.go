// Package hub implements the single-goroutine event loop that owns all
// broker routing state: client registry, subscriptions and the publisher
// index. No other goroutine touches these structures, so none of them need
// internal locking.
package hub

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/squawkbus/squawkbus/internal/audit"
	"github.com/squawkbus/squawkbus/internal/authz"
	"github.com/squawkbus/squawkbus/internal/hubapi"
	"github.com/squawkbus/squawkbus/internal/publishing"
	"github.com/squawkbus/squawkbus/internal/registry"
	"github.com/squawkbus/squawkbus/internal/subscriptions"
	"github.com/squawkbus/squawkbus/internal/wire"
)

// Metrics receives lifecycle counters from the hub. Implementations must
// not block; the hub calls them inline on its single goroutine. The hub
// calls ClientConnected and ClientDisconnected; it does not call
// MessageReceived.
type Metrics interface {
	ClientConnected()
	ClientDisconnected()
	MessageReceived(tag byte)
}

type noopMetrics struct{}

func (noopMetrics) ClientConnected()     {}
func (noopMetrics) ClientDisconnected() {}
func (noopMetrics) MessageReceived(byte) {}

// Hub dispatches ClientEvents onto the registry, subscription manager and
// publisher index, and emits ServerEvents back to interactors.
type Hub struct {
	registry      *registry.Registry
	subscriptions *subscriptions.Manager
	publishing    *publishing.Index
	authz         *authz.Manager
	logger        *slog.Logger
	metrics       Metrics
	audit         *audit.Sink // nil-receiver-safe: a nil *Sink is a valid no-op
}

// Option configures a Hub at construction time.
type Option func(*Hub)

// WithMetrics installs a Metrics sink. The default is a no-op sink.
func WithMetrics(m Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithAudit installs a lifecycle-event audit sink. A nil sink (the
// default) silently disables auditing.
func WithAudit(s *audit.Sink) Option {
	return func(h *Hub) { h.audit = s }
}

// New returns a Hub with empty registry, subscriptions and publisher index.
func New(authzMgr *authz.Manager, logger *slog.Logger, opts ...Option) *Hub {
	h := &Hub{
		registry:      registry.New(),
		subscriptions: subscriptions.New(),
		publishing:    publishing.New(),
		authz:         authzMgr,
		logger:        logger,
		metrics:       noopMetrics{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run consumes events until ctx is cancelled or the channel is closed.
func (h *Hub) Run(ctx context.Context, events <-chan hubapi.ClientEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			h.dispatch(evt)
		}
	}
}

func (h *Hub) dispatch(evt hubapi.ClientEvent) {
	switch e := evt.(type) {
	case hubapi.Connect:
		h.handleConnect(e)
	case hubapi.Close:
		h.handleClose(e.ClientID)
	case hubapi.Inbound:
		h.handleInbound(e.ClientID, e.Message)
	case hubapi.Reset:
		h.authz.Reset(e.Specs)
		h.audit.Publish(audit.Event{Kind: "config.reloaded"})
		h.logger.Info("hub: authorization specs reloaded", "count", len(e.Specs))
	default:
		h.logger.Warn("hub: unrecognized client event", "type", fmt.Sprintf("%T", evt))
	}
}

func (h *Hub) handleConnect(e hubapi.Connect) {
	h.registry.Connect(e.ClientID, e.Host, e.User, e.Events)
	h.metrics.ClientConnected()
	h.audit.Publish(audit.Event{Kind: "connect", ClientID: e.ClientID, Fields: map[string]string{"user": e.User, "host": e.Host}})
	h.logger.Info("hub: client connected", "client_id", e.ClientID, "user", e.User, "host", e.Host)
}

// handleClose ripples a disconnect through subscriptions before the
// publisher index, then forgets the client. This ordering is mandatory:
// subscribers must see the stale/zero-count notices while the registry
// entries they describe are still resolvable.
func (h *Hub) handleClose(clientID string) {
	for _, topic := range h.subscriptions.Close(clientID) {
		h.notifySubscriptionChange(clientID, topic, false, 0)
	}

	for _, topic := range h.publishing.Close(clientID) {
		h.emitStaleNotice(topic)
	}

	h.registry.Remove(clientID)
	h.metrics.ClientDisconnected()
	h.audit.Publish(audit.Event{Kind: "disconnect", ClientID: clientID})
	h.logger.Info("hub: client disconnected", "client_id", clientID)
}

func (h *Hub) handleInbound(clientID string, msg wire.Message) {
	switch m := msg.(type) {
	case wire.SubscriptionRequest:
		h.handleSubscriptionRequest(clientID, m)
	case wire.MulticastData:
		h.handleMulticastData(clientID, m)
	case wire.UnicastData:
		h.handleUnicastData(clientID, m)
	default:
		h.logger.Warn("hub: unexpected message after handshake", "client_id", clientID, "type", fmt.Sprintf("%T", msg))
	}
}

func (h *Hub) handleSubscriptionRequest(clientID string, msg wire.SubscriptionRequest) {
	if msg.IsAdd {
		count, _, err := h.subscriptions.Add(clientID, msg.Topic)
		if err != nil {
			h.logger.Warn("hub: invalid subscription pattern", "client_id", clientID, "topic", msg.Topic, "error", err)
			return
		}
		h.notifySubscriptionChange(clientID, msg.Topic, true, count)
		return
	}

	remaining, removed := h.subscriptions.Remove(clientID, msg.Topic, false)
	if removed {
		h.notifySubscriptionChange(clientID, msg.Topic, false, remaining)
	}
}

// notifySubscriptionChange broadcasts a ForwardedSubscriptionRequest to
// every subscriber of the reserved subscriptions topic. A client
// subscribing or unsubscribing to that very topic does not trigger a
// notification about itself.
func (h *Hub) notifySubscriptionChange(clientID, topic string, isAdd bool, count uint32) {
	if topic == wire.ReservedSubscriptionTopic {
		return
	}

	client, ok := h.registry.Get(clientID)
	if !ok {
		return
	}

	notification := wire.ForwardedSubscriptionRequest{
		Host:     client.Host,
		User:     client.User,
		ClientID: clientID,
		Topic:    topic,
		Count:    count,
	}

	for _, recipientID := range h.subscriptions.SubscribersOf(wire.ReservedSubscriptionTopic) {
		recipient, ok := h.registry.Get(recipientID)
		if !ok {
			continue
		}
		recipient.Events <- hubapi.Outbound{Message: notification}
	}
}

func (h *Hub) handleMulticastData(publisherID string, msg wire.MulticastData) {
	recipients := h.subscriptions.SubscribersOf(msg.Topic)
	if err := h.publishing.SendMulticast(publisherID, msg.Topic, msg.DataPackets, recipients, h.registry, h.authz); err != nil {
		h.logger.Warn("hub: multicast failed", "publisher_id", publisherID, "topic", msg.Topic, "error", err)
	}
}

func (h *Hub) handleUnicastData(publisherID string, msg wire.UnicastData) {
	if err := h.publishing.SendUnicast(publisherID, msg.ClientID, msg.Topic, msg.DataPackets, h.registry, h.authz); err != nil {
		h.logger.Warn("hub: unicast failed", "publisher_id", publisherID, "client_id", msg.ClientID, "error", err)
	}
}

// emitStaleNotice tells every remaining subscriber of topic that it has
// lost its last publisher: a ForwardedMulticastData with no data packets.
func (h *Hub) emitStaleNotice(topic string) {
	notice := wire.ForwardedMulticastData{Topic: topic}
	for _, recipientID := range h.subscriptions.SubscribersOf(topic) {
		recipient, ok := h.registry.Get(recipientID)
		if !ok {
			continue
		}
		recipient.Events <- hubapi.Outbound{Message: notice}
	}
}
