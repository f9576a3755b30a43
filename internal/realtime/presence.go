package realtime

import "github.com/rs/zerolog"

// Presence announces the online count to every open connection.
type Presence struct {
	registry *Registry
	log      zerolog.Logger
}

// NewPresence creates a broadcaster over registry.
func NewPresence(registry *Registry, lg zerolog.Logger) *Presence {
	return &Presence{registry: registry, log: lg}
}

// Announce sends count to every open connection, best effort.
func (p *Presence) Announce(count int) int {
	delivered := p.registry.Broadcast(countPayload(count))
	p.log.Debug().Int("count", count).Int("delivered", delivered).Msg("online count")
	return delivered
}
