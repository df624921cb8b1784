// Package subscriptions tracks which clients are subscribed to which topic
// patterns, backed by a topic tree, and reports the changes the hub must
// turn into ForwardedSubscriptionRequest meta-notifications.
package subscriptions

import "github.com/squawkbus/squawkbus/internal/topictree"

// Manager wraps a topictree.TopicTree with the bookkeeping the hub needs for
// meta-notifications: every successful Add and every Remove of an existing
// (subscriber, topic) pair reports the resulting reference count.
type Manager struct {
	tree *topictree.TopicTree
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{tree: topictree.New()}
}

// Add registers subscriberID against topic, returning the resulting
// reference count and whether this was the first registration of the
// (subscriber, topic) pair.
func (m *Manager) Add(subscriberID, topic string) (count uint32, isNew bool, err error) {
	count, err = m.tree.Add(topic, subscriberID)
	if err != nil {
		return 0, false, err
	}
	return count, count == 1, nil
}

// Remove decrements subscriberID's reference count against topic, or
// forces it to zero when forceAll is set (e.g. on disconnect). It reports
// the remaining count and whether the pair existed at all (i.e. whether a
// meta-notification should fire, regardless of whether remaining is zero).
func (m *Manager) Remove(subscriberID, topic string, forceAll bool) (remaining uint32, removed bool) {
	remaining, ok := m.tree.Remove(topic, subscriberID, forceAll)
	if !ok {
		return 0, false
	}
	return remaining, true
}

// SubscribersOf returns every client subscribed to a pattern matching
// topic.
func (m *Manager) SubscribersOf(topic string) []string {
	return m.tree.Subscribers(topic)
}

// Close removes every subscription subscriberID holds and returns the
// topics it was removed from entirely, so the caller can emit a
// meta-notification for each.
func (m *Manager) Close(subscriberID string) []string {
	topics := m.tree.Topics(subscriberID)
	removed := make([]string, 0, len(topics))
	for topic := range topics {
		if _, ok := m.Remove(subscriberID, topic, true); ok {
			removed = append(removed, topic)
		}
	}
	return removed
}
