// internal/realtime/relay.go
//
// Chat Relay: validates, rate-limits, persists and fans out chat messages.
//
// Processing order for one message:
//   1. unknown/stale connection → dropped silently
//   2. cooldown since the sender's last accepted message → sender-only notice
//   3. content validation → sender-only notice
//   4. stamp lastMessageAt (before any I/O, so a slow write cannot reopen the window)
//   5. persist (bounded by the store timeout)
//   6. broadcast to every open connection, sender included
//
// Steps 2–4 run under the connection's lock, so two messages from the same
// connection can never both pass the cooldown for one window. No lock is held
// across the persistence call.

package realtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/InFirePro/alien/internal/store"
)

// PersistMode decides what a failed chat write does to delivery.
type PersistMode string

const (
	// BestEffort broadcasts even when the write fails; the message is then
	// missing from history replayed to later joiners.
	BestEffort PersistMode = "best_effort"
	// Durable only broadcasts messages that were written.
	Durable PersistMode = "durable"
)

const (
	MaxChatName = 50
	MaxChatText = 200
)

// Outcome is what the relay did with one inbound message.
type Outcome int

const (
	Dropped     Outcome = iota // unknown connection
	RateLimited                // inside the cooldown window
	Invalid                    // failed content validation
	Delivered                  // persisted and broadcast
	Unsaved                    // broadcast, persistence failed (best effort)
	Rejected                   // persistence failed, not broadcast (durable)
)

func (o Outcome) String() string {
	switch o {
	case Dropped:
		return "dropped"
	case RateLimited:
		return "rate_limited"
	case Invalid:
		return "invalid"
	case Delivered:
		return "delivered"
	case Unsaved:
		return "unsaved"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

var validate = validator.New()

type chatEntry struct {
	Name string `validate:"required,max=50"`
	Text string `validate:"required,max=200"`
}

// Relay handles chat frames from registered connections.
type Relay struct {
	registry *Registry
	store    store.Store
	mode     PersistMode
	cooldown time.Duration
	timeout  time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

func (r *Relay) rateLimitNotice() string {
	return fmt.Sprintf("Please wait %d seconds", int(r.cooldown.Round(time.Second)/time.Second))
}

const invalidNotice = "Invalid message (max 200 chars)"

const unsavedNotice = "Message could not be saved, please try again"

// Handle processes one chat message from connID.
func (r *Relay) Handle(ctx context.Context, connID string, in Inbound) Outcome {
	c, ok := r.registry.Get(connID)
	if !ok {
		r.log.Debug().Str("conn", connID).Msg("chat from unknown connection dropped")
		return Dropped
	}

	now := r.now()
	msg, outcome := r.admit(c, now, in)
	switch outcome {
	case RateLimited:
		c.Enqueue(errorPayload(r.rateLimitNotice()))
		return RateLimited
	case Invalid:
		c.Enqueue(errorPayload(invalidNotice))
		return Invalid
	}

	outcome = Delivered
	if err := r.persist(ctx, msg); err != nil {
		if r.mode == Durable {
			r.log.Warn().Err(err).Str("conn", connID).Msg("chat save failed, not broadcast")
			c.Enqueue(errorPayload(unsavedNotice))
			return Rejected
		}
		r.log.Warn().Err(err).Str("conn", connID).Msg("chat save failed, broadcasting anyway")
		outcome = Unsaved
	}

	delivered := r.registry.Broadcast(chatPayload(msg))
	r.log.Info().
		Str("conn", connID).
		Str("name", msg.Name).
		Int("delivered", delivered).
		Msg("chat")
	return outcome
}

// admit applies the cooldown and content rules and, when both pass, stamps
// the connection. It runs entirely under the connection's lock.
func (r *Relay) admit(c *Conn, now time.Time, in Inbound) (store.ChatMessage, Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastMessageAt.IsZero() && now.Sub(c.lastMessageAt) < r.cooldown {
		return store.ChatMessage{}, RateLimited
	}

	name := truncateRunes(strings.TrimSpace(in.Name), MaxChatName)
	text := strings.TrimSpace(in.Text)
	if err := validate.Struct(chatEntry{Name: name, Text: text}); err != nil {
		return store.ChatMessage{}, Invalid
	}

	c.lastMessageAt = now
	return store.ChatMessage{Name: name, Text: text, SentAt: now.UTC()}, Delivered
}

func (r *Relay) persist(ctx context.Context, msg store.ChatMessage) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return r.store.AppendChat(ctx, msg)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
