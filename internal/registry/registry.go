// Package registry tracks the clients currently connected to the hub: who
// they are and the channel their interactor reads outbound events from.
package registry

import "github.com/squawkbus/squawkbus/internal/hubapi"

// Client is one connected client as seen by the hub.
type Client struct {
	ID     string
	Host   string
	User   string
	Events chan<- hubapi.ServerEvent
}

// Registry maps client ids to their Client record. It is owned exclusively
// by the hub goroutine and is not safe for concurrent use.
type Registry struct {
	clients map[string]Client
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

// Connect records a newly connected client.
func (r *Registry) Connect(id, host, user string, events chan<- hubapi.ServerEvent) {
	r.clients[id] = Client{ID: id, Host: host, User: user, Events: events}
}

// Get returns the client record for id, if connected.
func (r *Registry) Get(id string) (Client, bool) {
	c, ok := r.clients[id]
	return c, ok
}

// Remove forgets a disconnected client.
func (r *Registry) Remove(id string) {
	delete(r.clients, id)
}
