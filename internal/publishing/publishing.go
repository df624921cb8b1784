// Package publishing tracks which topics each client has published to, and
// forwards unicast/multicast data packets to their recipients after
// entitlement filtering.
package publishing

import (
	"fmt"

	"github.com/squawkbus/squawkbus/internal/authz"
	"github.com/squawkbus/squawkbus/internal/hubapi"
	"github.com/squawkbus/squawkbus/internal/registry"
	"github.com/squawkbus/squawkbus/internal/wire"
)

// Index is the symmetric publisher/topic index: every topic a publisher
// has ever sent on is recorded both ways, so a disconnect can cheaply find
// the topics that lose their last publisher.
type Index struct {
	topicsByPublisher map[string]map[string]struct{}
	publishersByTopic map[string]map[string]struct{}
}

// New returns an empty Index.
func New() *Index {
	return &Index{
		topicsByPublisher: make(map[string]map[string]struct{}),
		publishersByTopic: make(map[string]map[string]struct{}),
	}
}

func (idx *Index) addTopic(publisherID, topic string) {
	topics, ok := idx.topicsByPublisher[publisherID]
	if !ok {
		topics = make(map[string]struct{})
		idx.topicsByPublisher[publisherID] = topics
	}
	topics[topic] = struct{}{}

	publishers, ok := idx.publishersByTopic[topic]
	if !ok {
		publishers = make(map[string]struct{})
		idx.publishersByTopic[topic] = publishers
	}
	publishers[publisherID] = struct{}{}
}

// SendMulticast filters packets per subscriber entitlements and forwards
// them to every client id in subscriberIDs, as seen from the perspective of
// publisherID. The caller (the hub) resolves subscriberIDs from the topic
// tree before calling; a subscriber matched through more than one pattern
// (e.g. both "a.*" and "a.b") is deduplicated so it receives the multicast
// exactly once.
func (idx *Index) SendMulticast(
	publisherID, topic string,
	packets []wire.DataPacket,
	subscriberIDs []string,
	reg *registry.Registry,
	authzMgr *authz.Manager,
) error {
	publisher, ok := reg.Get(publisherID)
	if !ok {
		return fmt.Errorf("publishing: unknown publisher %s", publisherID)
	}

	idx.addTopic(publisherID, topic)

	granted := authzMgr.Entitlements(publisher.User, topic, authz.RolePublisher)
	allowed := filterByPublisherGrant(packets, granted)
	if len(allowed) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(subscriberIDs))
	for _, subscriberID := range subscriberIDs {
		if _, dup := seen[subscriberID]; dup {
			continue
		}
		seen[subscriberID] = struct{}{}

		subscriber, ok := reg.Get(subscriberID)
		if !ok {
			continue
		}

		visible := allowed
		if len(granted) > 0 {
			subGranted := authzMgr.Entitlements(subscriber.User, topic, authz.RoleSubscriber)
			visible = filterBySubscriberGrant(allowed, subGranted)
		}
		if len(visible) == 0 {
			continue
		}

		subscriber.Events <- hubapi.Outbound{Message: wire.ForwardedMulticastData{
			Host:        publisher.Host,
			User:        publisher.User,
			Topic:       topic,
			DataPackets: visible,
		}}
	}

	return nil
}

// SendUnicast filters packets per recipient entitlements and forwards them
// to exactly one named client.
func (idx *Index) SendUnicast(
	publisherID, clientID, topic string,
	packets []wire.DataPacket,
	reg *registry.Registry,
	authzMgr *authz.Manager,
) error {
	publisher, ok := reg.Get(publisherID)
	if !ok {
		return fmt.Errorf("publishing: unknown publisher %s", publisherID)
	}

	recipient, ok := reg.Get(clientID)
	if !ok {
		return fmt.Errorf("publishing: unknown recipient %s", clientID)
	}

	idx.addTopic(publisherID, topic)

	granted := authzMgr.Entitlements(publisher.User, topic, authz.RolePublisher)
	allowed := filterByPublisherGrant(packets, granted)
	if len(allowed) == 0 {
		return nil
	}

	visible := allowed
	if len(granted) > 0 {
		recipientGranted := authzMgr.Entitlements(recipient.User, topic, authz.RoleSubscriber)
		visible = filterBySubscriberGrant(allowed, recipientGranted)
	}
	if len(visible) == 0 {
		return nil
	}

	recipient.Events <- hubapi.Outbound{Message: wire.ForwardedUnicastData{
		Host:        publisher.Host,
		User:        publisher.User,
		ClientID:    publisherID,
		Topic:       topic,
		DataPackets: visible,
	}}

	return nil
}

// Close forgets publisherID and returns the topics that consequently lost
// their last publisher, so the caller can notify subscribers with a stale
// notice.
func (idx *Index) Close(publisherID string) []string {
	topics, ok := idx.topicsByPublisher[publisherID]
	if !ok {
		return nil
	}
	delete(idx.topicsByPublisher, publisherID)

	var orphaned []string
	for topic := range topics {
		publishers := idx.publishersByTopic[topic]
		delete(publishers, publisherID)
		if len(publishers) == 0 {
			delete(idx.publishersByTopic, topic)
			orphaned = append(orphaned, topic)
		}
	}
	return orphaned
}

// filterByPublisherGrant applies the "empty entitlement set means
// unrestricted publisher" convenience policy: if the publisher has no
// configured entitlement grant for this topic at all, every packet passes
// through untouched; otherwise a packet only passes if its own required
// entitlements are a subset of the publisher's grant.
func filterByPublisherGrant(packets []wire.DataPacket, granted wire.EntitlementSet) []wire.DataPacket {
	if len(granted) == 0 {
		return packets
	}
	var out []wire.DataPacket
	for _, p := range packets {
		if p.IsAuthorized(granted) {
			out = append(out, p)
		}
	}
	return out
}

// filterBySubscriberGrant keeps only the packets whose required
// entitlements are a subset of what the subscriber is granted for this
// topic. Callers only apply this when the publisher's own grant is
// non-empty: E = S ∩ R, and an empty S means every packet already passed
// unfiltered, so there is nothing left to intersect on the subscriber side.
func filterBySubscriberGrant(packets []wire.DataPacket, granted wire.EntitlementSet) []wire.DataPacket {
	var out []wire.DataPacket
	for _, p := range packets {
		if p.IsAuthorized(granted) {
			out = append(out, p)
		}
	}
	return out
}
