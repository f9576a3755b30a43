// internal/realtime/hub.go
//
// Hub wires the registry, presence broadcaster and chat relay together and
// owns the connection lifecycle:
//   - Connect: register → announce new count → replay recent chat to the newcomer.
//   - Disconnect: unregister (idempotent) → announce new count.
//   - HandleFrame: decode one client frame and dispatch it.

package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/InFirePro/alien/internal/store"
)

// Options configures a Hub. Zero values fall back to the defaults below.
type Options struct {
	Cooldown      time.Duration // per-connection chat cooldown (5s)
	Persistence   PersistMode   // BestEffort
	HistoryLimit  int           // messages replayed on connect (50)
	SendBuffer    int           // outbound frames queued per connection (64)
	StoreTimeout  time.Duration // bound on history reads and chat writes (5s)
	AllowedOrigin string        // websocket Origin allow-list entry; "" or "*" allows any
	Clock         func() time.Time
	Logger        *zerolog.Logger
}

func (o *Options) defaults() {
	if o.Cooldown <= 0 {
		o.Cooldown = 5 * time.Second
	}
	if o.Persistence == "" {
		o.Persistence = BestEffort
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 50
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 5 * time.Second
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Logger == nil {
		o.Logger = &log.Logger
	}
}

// Hub is the realtime chat and presence service.
type Hub struct {
	registry *Registry
	presence *Presence
	relay    *Relay
	store    store.Store
	opts     Options
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewHub builds a Hub over st.
func NewHub(st store.Store, opts Options) *Hub {
	opts.defaults()
	lg := opts.Logger.With().Str("component", "realtime").Logger()
	reg := NewRegistry(opts.SendBuffer)

	h := &Hub{
		registry: reg,
		presence: NewPresence(reg, lg),
		relay: &Relay{
			registry: reg,
			store:    st,
			mode:     opts.Persistence,
			cooldown: opts.Cooldown,
			timeout:  opts.StoreTimeout,
			now:      opts.Clock,
			log:      lg,
		},
		store: st,
		opts:  opts,
		log:   lg,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Connect registers a new connection, announces the new count to everyone,
// and queues the chat history for the newcomer only. A failed history read
// still sends an (empty) history frame.
func (h *Hub) Connect(ctx context.Context) *Conn {
	c, n := h.registry.Open()
	h.log.Info().Str("conn", c.ID()).Int("online", n).Msg("connected")
	h.presence.Announce(n)

	hctx, cancel := context.WithTimeout(ctx, h.opts.StoreTimeout)
	defer cancel()
	msgs, err := h.store.RecentChat(hctx, h.opts.HistoryLimit)
	if err != nil {
		h.log.Warn().Err(err).Str("conn", c.ID()).Msg("chat history unavailable")
		msgs = nil
	}
	c.Enqueue(historyPayload(msgs))
	return c
}

// Disconnect removes c. Only the first call for a connection announces.
func (h *Hub) Disconnect(c *Conn) bool {
	n, removed := h.registry.Close(c.ID())
	if !removed {
		return false
	}
	h.log.Info().Str("conn", c.ID()).Int("online", n).Msg("disconnected")
	h.presence.Announce(n)
	return true
}

// HandleFrame decodes a client frame and dispatches it. Malformed frames and
// unknown types are logged and ignored.
func (h *Hub) HandleFrame(ctx context.Context, c *Conn, raw []byte) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		h.log.Debug().Err(err).Str("conn", c.ID()).Msg("invalid frame")
		return
	}
	switch in.Type {
	case TypeChat:
		h.relay.Handle(ctx, c.ID(), in)
	default:
		h.log.Debug().Str("conn", c.ID()).Str("type", in.Type).Msg("unknown frame type")
	}
}

// Relay exposes the chat relay.
func (h *Hub) Relay() *Relay { return h.relay }

// Count is the number of open connections.
func (h *Hub) Count() int { return h.registry.Len() }

// Shutdown closes every connection without announcing.
func (h *Hub) Shutdown() {
	n := h.registry.CloseAll()
	h.log.Info().Int("closed", n).Msg("realtime hub shut down")
}
