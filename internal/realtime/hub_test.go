package realtime

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/InFirePro/alien/internal/store"
)

func TestHub_Connect_AnnouncesAndReplaysHistory(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	st := store.NewMemoryStore()
	base := time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		req.NoError(st.AppendChat(ctx, store.ChatMessage{
			Name:   "bot",
			Text:   fmt.Sprintf("m%02d", i),
			SentAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	hub := newTestHub(st, newClock(), BestEffort)

	// Given one client already online
	first := hub.Connect(ctx)
	drain(t, first)

	// When a second client joins
	second := hub.Connect(ctx)

	// Then both see the new count and only the newcomer gets the history
	firstFrames := drain(t, first)
	req.Len(firstFrames, 1)
	req.Equal(TypeOnlineCount, firstFrames[0].Type)
	req.Equal(2, firstFrames[0].Count)

	secondFrames := drain(t, second)
	counts := ofType(secondFrames, TypeOnlineCount)
	req.Len(counts, 1)
	req.Equal(2, counts[0].Count)

	histories := ofType(secondFrames, TypeChatHistory)
	req.Len(histories, 1)
	msgs := histories[0].Messages
	req.Len(msgs, 50)
	req.Equal("m10", msgs[0].Text)
	req.Equal("m59", msgs[49].Text)
}

func TestHub_Connect_EmptyHistoryWhenStoreFails(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(failingStore{store.NewMemoryStore()}, newClock(), BestEffort)

	c := hub.Connect(context.Background())

	histories := ofType(drain(t, c), TypeChatHistory)
	req.Len(histories, 1)
	req.NotNil(histories[0].Messages)
	req.Empty(histories[0].Messages)
	req.Equal(1, hub.Count())
}

func TestHub_Disconnect_AnnouncesOnce(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(store.NewMemoryStore(), newClock(), BestEffort)
	stay := hub.Connect(context.Background())
	leave := hub.Connect(context.Background())
	drain(t, stay)

	// When the same connection is reported closed twice
	req.True(hub.Disconnect(leave))
	req.False(hub.Disconnect(leave))

	// Then the remaining client saw exactly one decrement
	frames := drain(t, stay)
	req.Len(frames, 1)
	req.Equal(TypeOnlineCount, frames[0].Type)
	req.Equal(1, frames[0].Count)
	req.Equal(1, hub.Count())
}

func TestHub_HandleFrame(t *testing.T) {
	req := require.New(t)
	st := store.NewMemoryStore()
	hub := newTestHub(st, newClock(), BestEffort)
	c := hub.Connect(context.Background())
	drain(t, c)

	// Malformed and unknown frames are ignored
	hub.HandleFrame(context.Background(), c, []byte(`{not json`))
	hub.HandleFrame(context.Background(), c, []byte(`{"type":"shoot","x":1}`))
	req.Empty(drain(t, c))

	hub.HandleFrame(context.Background(), c, []byte(`{"type":"chat","name":"ann","text":"gg"}`))
	chats := ofType(drain(t, c), TypeChat)
	req.Len(chats, 1)
	msg := chats[0].chat(t)
	req.Equal("ann", msg.Name)
	req.Equal("gg", msg.Text)
	req.False(msg.SentAt.IsZero())
}

func TestHub_Shutdown_ClosesQueues(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(store.NewMemoryStore(), newClock(), BestEffort)
	c := hub.Connect(context.Background())
	drain(t, c)

	hub.Shutdown()

	req.Equal(0, hub.Count())
	_, ok := <-c.Outbound()
	req.False(ok)
	req.False(hub.Disconnect(c))
}
