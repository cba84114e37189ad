package stream

import (
	"fmt"
	"log/slog"
	"sync"
)

// Factory builds the Client for a feed the first time it is requested.
type Factory func(feed string) (*Client, error)

// Registry enforces one live Client per feed key. It is owned by whichever
// component composes the application, so lifetime and test isolation are
// explicit rather than hanging off package state.
type Registry struct {
	logger  *slog.Logger
	factory Factory

	mu      sync.Mutex
	clients map[string]*Client
}

func NewRegistry(logger *slog.Logger, factory Factory) *Registry {
	return &Registry{
		logger:  logger.WithGroup("stream_registry"),
		factory: factory,
		clients: make(map[string]*Client),
	}
}

// Get returns the Client for feed, constructing it on first use.
func (r *Registry) Get(feed string) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[feed]; ok {
		return c, nil
	}
	c, err := r.factory(feed)
	if err != nil {
		return nil, fmt.Errorf("failed to build stream client for feed '%s': %w", feed, err)
	}
	r.clients[feed] = c
	r.logger.Debug("Stream client created", "feed", feed)
	return c, nil
}

// Remove disconnects and forgets the Client for feed. A later Get builds a
// fresh instance, which is the only way to revive a disconnected feed.
func (r *Registry) Remove(feed string) {
	r.mu.Lock()
	c, ok := r.clients[feed]
	delete(r.clients, feed)
	r.mu.Unlock()
	if ok {
		c.Disconnect()
	}
}

// CloseAll disconnects every client and empties the registry.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[string]*Client)
	r.mu.Unlock()
	for feed, c := range clients {
		r.logger.Debug("Disconnecting stream client", "feed", feed)
		c.Disconnect()
	}
}
