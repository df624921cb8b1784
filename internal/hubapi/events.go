// Package hubapi defines the event types exchanged between interactors and
// the hub. It exists as a small package, depending only on wire and authz,
// so that the registry, publishing, hub and interactor packages can all
// refer to the same event shapes without import cycles.
package hubapi

import (
	"github.com/squawkbus/squawkbus/internal/authz"
	"github.com/squawkbus/squawkbus/internal/wire"
)

// ClientEvent is the sealed union of events an interactor sends to the hub.
type ClientEvent interface {
	clientEvent()
}

// Connect announces a newly authenticated client. Events is the channel the
// interactor reads outbound ServerEvents from; the hub registers it against
// ClientID.
type Connect struct {
	ClientID string
	Host     string
	User     string
	Events   chan<- ServerEvent
}

func (Connect) clientEvent() {}

// Close announces that a client's connection has ended. The hub guarantees
// exactly one Close event is processed per client, ripple-closing its
// subscriptions and publisher topics before forgetting it.
type Close struct {
	ClientID string
}

func (Close) clientEvent() {}

// Inbound carries one wire message received from a client.
type Inbound struct {
	ClientID string
	Message  wire.Message
}

func (Inbound) clientEvent() {}

// Reset replaces the hub's authorization spec set, e.g. after a SIGHUP
// config reload.
type Reset struct {
	Specs []authz.AuthorizationSpec
}

func (Reset) clientEvent() {}

// ServerEvent is the sealed union of events the hub sends to an interactor.
type ServerEvent interface {
	serverEvent()
}

// Outbound carries one wire message to be written to the client's
// transport.
type Outbound struct {
	Message wire.Message
}

func (Outbound) serverEvent() {}
