package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/InFirePro/alien/internal/store"
)

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// failingStore keeps scores in memory but cannot read or write chat.
type failingStore struct{ *store.Memory }

var errDiskGone = errors.New("disk gone")

func (failingStore) AppendChat(context.Context, store.ChatMessage) error {
	return errors.Join(store.ErrUnavailable, errDiskGone)
}

func (failingStore) RecentChat(context.Context, int) ([]store.ChatMessage, error) {
	return nil, errors.Join(store.ErrUnavailable, errDiskGone)
}

type frame struct {
	Type     string              `json:"type"`
	Count    int                 `json:"count"`
	Messages []store.ChatMessage `json:"messages"`
	Message  json.RawMessage     `json:"message"`
}

func (f frame) chat(t *testing.T) store.ChatMessage {
	var m store.ChatMessage
	require.NoError(t, json.Unmarshal(f.Message, &m))
	return m
}

func (f frame) notice(t *testing.T) string {
	var s string
	require.NoError(t, json.Unmarshal(f.Message, &s))
	return s
}

// drain returns every frame currently queued on c.
func drain(t *testing.T, c *Conn) []frame {
	t.Helper()
	var out []frame
	for {
		select {
		case b, ok := <-c.Outbound():
			if !ok {
				return out
			}
			var f frame
			require.NoError(t, json.Unmarshal(b, &f))
			out = append(out, f)
		default:
			return out
		}
	}
}

func ofType(frames []frame, typ string) []frame {
	var out []frame
	for _, f := range frames {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

func newTestHub(st store.Store, clk *clock, mode PersistMode) *Hub {
	lg := zerolog.Nop()
	return NewHub(st, Options{
		Persistence: mode,
		Clock:       clk.Now,
		Logger:      &lg,
	})
}
