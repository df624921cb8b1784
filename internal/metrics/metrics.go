// Package metrics exposes the broker's Prometheus instrumentation: active
// connection gauges, message throughput counters and subscription counts.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics wraps the broker's Prometheus collectors. The zero value is not
// usable; construct with New.
type Metrics struct {
	connections      prometheus.Gauge
	messagesReceived *prometheus.CounterVec
	entitlementDrops prometheus.Counter
	subscriptions    prometheus.Gauge
}

// New registers the broker's collectors against reg under namespace and
// returns a Metrics ready to use.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of currently connected clients.",
		}),
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Messages received from clients, by wire tag.",
		}, []string{"tag"}),
		entitlementDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entitlement_drops_total",
			Help:      "Data packets dropped for failing an entitlement check.",
		}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriptions_active",
			Help:      "Number of currently active (subscriber, topic) registrations.",
		}),
	}

	reg.MustRegister(m.connections, m.messagesReceived, m.entitlementDrops, m.subscriptions)
	return m
}

// ClientConnected increments the active connection gauge.
func (m *Metrics) ClientConnected() {
	m.connections.Inc()
}

// ClientDisconnected decrements the active connection gauge.
func (m *Metrics) ClientDisconnected() {
	m.connections.Dec()
}

// MessageReceived records one inbound message tagged with its wire type.
func (m *Metrics) MessageReceived(tag byte) {
	m.messagesReceived.WithLabelValues(tagLabel(tag)).Inc()
}

// EntitlementDropped records one data packet dropped for failing an
// entitlement check.
func (m *Metrics) EntitlementDropped() {
	m.entitlementDrops.Inc()
}

// SubscriptionAdded increments the active subscription gauge.
func (m *Metrics) SubscriptionAdded() {
	m.subscriptions.Inc()
}

// SubscriptionRemoved decrements the active subscription gauge.
func (m *Metrics) SubscriptionRemoved() {
	m.subscriptions.Dec()
}

func tagLabel(tag byte) string {
	switch tag {
	case 1:
		return "authentication_request"
	case 2:
		return "authentication_response"
	case 3:
		return "multicast_data"
	case 4:
		return "unicast_data"
	case 5:
		return "forwarded_subscription_request"
	case 6:
		return "notification_request"
	case 7:
		return "subscription_request"
	case 8:
		return "forwarded_multicast_data"
	case 9:
		return "forwarded_unicast_data"
	default:
		return "unknown"
	}
}
