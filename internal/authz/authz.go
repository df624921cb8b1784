// Package authz implements entitlement-based authorization: a set of
// regex-matched (user, topic, role) rules that grant entitlement tags to
// subscribers and publishers.
package authz

import (
	"regexp"

	"github.com/squawkbus/squawkbus/internal/wire"
)

// Role is a bitmask of the capabilities an AuthorizationSpec grants.
type Role uint8

const (
	// RoleSubscriber grants entitlements when reading from a topic.
	RoleSubscriber Role = 1 << iota
	// RolePublisher grants entitlements when writing to a topic.
	RolePublisher
)

// Has reports whether r includes every bit set in other.
func (r Role) Has(other Role) bool {
	return r&other == other
}

// AuthorizationSpec grants Entitlements to any (user, topic) pair matching
// UserPattern and TopicPattern, for the roles named in Roles.
type AuthorizationSpec struct {
	UserPattern  *regexp.Regexp
	TopicPattern *regexp.Regexp
	Entitlements wire.EntitlementSet
	Roles        Role
}

// Matches reports whether spec applies to user acting as role on topic.
func (spec AuthorizationSpec) Matches(user, topic string, role Role) bool {
	return spec.Roles.Has(role) &&
		spec.UserPattern.MatchString(user) &&
		spec.TopicPattern.MatchString(topic)
}

// Manager evaluates a set of AuthorizationSpecs to answer entitlement
// queries. It holds no lock and is not safe for concurrent use: the hub
// goroutine owns it, and a SIGHUP reload reaches Reset as a hubapi.Reset
// event processed on that same goroutine.
type Manager struct {
	specs []AuthorizationSpec
}

// NewManager returns a Manager initialized with specs.
func NewManager(specs []AuthorizationSpec) *Manager {
	return &Manager{specs: specs}
}

// Reset replaces the manager's spec set, e.g. on a configuration reload.
func (m *Manager) Reset(specs []AuthorizationSpec) {
	m.specs = specs
}

// Entitlements returns the union of entitlements granted to user acting as
// role on topic by every matching spec.
func (m *Manager) Entitlements(user, topic string, role Role) wire.EntitlementSet {
	result := make(wire.EntitlementSet)
	for _, spec := range m.specs {
		if spec.Matches(user, topic, role) {
			for e := range spec.Entitlements {
				result[e] = struct{}{}
			}
		}
	}
	return result
}

// DefaultPermitAllSpecs returns the fallback spec set used when no
// authorization specs are configured at all: any user may subscribe to or
// publish on any topic, carrying the single entitlement 0.
func DefaultPermitAllSpecs() []AuthorizationSpec {
	return []AuthorizationSpec{
		{
			UserPattern:  regexp.MustCompile(".*"),
			TopicPattern: regexp.MustCompile(".*"),
			Entitlements: wire.NewEntitlementSet(0),
			Roles:        RoleSubscriber | RolePublisher,
		},
	}
}
