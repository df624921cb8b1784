package publishing

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squawkbus/squawkbus/internal/authz"
	"github.com/squawkbus/squawkbus/internal/hubapi"
	"github.com/squawkbus/squawkbus/internal/registry"
	"github.com/squawkbus/squawkbus/internal/wire"
)

func newTestRegistry(t *testing.T) (*registry.Registry, chan hubapi.ServerEvent, chan hubapi.ServerEvent) {
	t.Helper()
	reg := registry.New()
	pubEvents := make(chan hubapi.ServerEvent, 4)
	subEvents := make(chan hubapi.ServerEvent, 4)
	reg.Connect("pub1", "10.0.0.1", "alice", pubEvents)
	reg.Connect("sub1", "10.0.0.2", "bob", subEvents)
	return reg, pubEvents, subEvents
}

func TestSendMulticastForwardsToSubscribers(t *testing.T) {
	reg, _, subEvents := newTestRegistry(t)
	authzMgr := authz.NewManager(authz.DefaultPermitAllSpecs())
	idx := New()

	packets := []wire.DataPacket{{Payload: []byte("tick")}}
	err := idx.SendMulticast("pub1", "quote.MSFT", packets, []string{"sub1"}, reg, authzMgr)
	require.NoError(t, err)

	evt := <-subEvents
	out, ok := evt.(hubapi.Outbound)
	require.True(t, ok)
	fmd, ok := out.Message.(wire.ForwardedMulticastData)
	require.True(t, ok)
	assert.Equal(t, "alice", fmd.User)
	assert.Equal(t, "quote.MSFT", fmd.Topic)
	assert.Equal(t, packets, fmd.DataPackets)
}

func TestSendMulticastPassesEverythingWhenPublisherHasNoGrantAtAll(t *testing.T) {
	reg, _, subEvents := newTestRegistry(t)
	authzMgr := authz.NewManager(nil) // no specs at all: publisher has no grant, so nothing is filtered
	idx := New()

	packets := []wire.DataPacket{
		{Entitlements: wire.NewEntitlementSet(1), Payload: []byte("restricted")},
		{Payload: []byte("open")},
	}
	err := idx.SendMulticast("pub1", "quote.MSFT", packets, []string{"sub1"}, reg, authzMgr)
	require.NoError(t, err)

	evt := <-subEvents
	fmd := evt.(hubapi.Outbound).Message.(wire.ForwardedMulticastData)
	require.Len(t, fmd.DataPackets, 2)
}

func TestSendMulticastDropsPacketsSubscriberIsNotEntitledTo(t *testing.T) {
	reg, _, subEvents := newTestRegistry(t)
	authzMgr := authz.NewManager([]authz.AuthorizationSpec{
		{
			UserPattern:  regexp.MustCompile("^alice$"),
			TopicPattern: regexp.MustCompile("^quote\\.MSFT$"),
			Entitlements: wire.NewEntitlementSet(1),
			Roles:        authz.RolePublisher,
		},
	}) // alice is granted entitlement 1 as publisher; bob has no subscriber grant at all
	idx := New()

	packets := []wire.DataPacket{
		{Entitlements: wire.NewEntitlementSet(1), Payload: []byte("restricted")},
		{Payload: []byte("open")},
	}
	err := idx.SendMulticast("pub1", "quote.MSFT", packets, []string{"sub1"}, reg, authzMgr)
	require.NoError(t, err)

	evt := <-subEvents
	fmd := evt.(hubapi.Outbound).Message.(wire.ForwardedMulticastData)
	require.Len(t, fmd.DataPackets, 1)
	assert.Equal(t, []byte("open"), fmd.DataPackets[0].Payload)
}

func TestSendMulticastDedupsSubscriberMatchedByMultiplePatterns(t *testing.T) {
	reg, _, subEvents := newTestRegistry(t)
	authzMgr := authz.NewManager(authz.DefaultPermitAllSpecs())
	idx := New()

	packets := []wire.DataPacket{{Payload: []byte("tick")}}
	// sub1 resolved twice, e.g. once via "quote.*" and once via "quote.MSFT".
	err := idx.SendMulticast("pub1", "quote.MSFT", packets, []string{"sub1", "sub1"}, reg, authzMgr)
	require.NoError(t, err)

	require.Len(t, subEvents, 1)
	<-subEvents
	assert.Empty(t, subEvents)
}

func TestSendUnicastForwardsToNamedRecipient(t *testing.T) {
	reg, _, subEvents := newTestRegistry(t)
	authzMgr := authz.NewManager(authz.DefaultPermitAllSpecs())
	idx := New()

	packets := []wire.DataPacket{{Payload: []byte("hi")}}
	err := idx.SendUnicast("pub1", "sub1", "direct.msg", packets, reg, authzMgr)
	require.NoError(t, err)

	evt := <-subEvents
	fud := evt.(hubapi.Outbound).Message.(wire.ForwardedUnicastData)
	assert.Equal(t, "alice", fud.User)
	assert.Equal(t, "pub1", fud.ClientID)
}

func TestSendUnicastUnknownRecipientErrors(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	authzMgr := authz.NewManager(authz.DefaultPermitAllSpecs())
	idx := New()

	err := idx.SendUnicast("pub1", "ghost", "direct.msg", nil, reg, authzMgr)
	assert.Error(t, err)
}

func TestCloseReturnsOrphanedTopics(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	authzMgr := authz.NewManager(authz.DefaultPermitAllSpecs())
	idx := New()

	require.NoError(t, idx.SendMulticast("pub1", "quote.MSFT", nil, nil, reg, authzMgr))
	require.NoError(t, idx.SendMulticast("pub1", "quote.GOOG", nil, nil, reg, authzMgr))

	orphaned := idx.Close("pub1")
	assert.ElementsMatch(t, []string{"quote.MSFT", "quote.GOOG"}, orphaned)
	assert.Empty(t, idx.Close("pub1"))
}
