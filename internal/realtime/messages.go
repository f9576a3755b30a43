package realtime

import (
	"encoding/json"

	"github.com/InFirePro/alien/internal/store"
)

// Frame types on the realtime channel.
const (
	TypeChatHistory = "chat_history"
	TypeChat        = "chat"
	TypeOnlineCount = "online_count"
	TypeError       = "error"
)

// Inbound is a client→server frame. Only "chat" is acted on.
type Inbound struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Text string `json:"text"`
}

type historyFrame struct {
	Type     string              `json:"type"`
	Messages []store.ChatMessage `json:"messages"`
}

type chatFrame struct {
	Type    string            `json:"type"`
	Message store.ChatMessage `json:"message"`
}

type countFrame struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// encode marshals a server frame. Frames are plain structs of strings,
// ints and times, so marshaling does not fail.
func encode(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func historyPayload(msgs []store.ChatMessage) []byte {
	if msgs == nil {
		msgs = []store.ChatMessage{}
	}
	return encode(historyFrame{Type: TypeChatHistory, Messages: msgs})
}

func chatPayload(m store.ChatMessage) []byte {
	return encode(chatFrame{Type: TypeChat, Message: m})
}

func countPayload(n int) []byte {
	return encode(countFrame{Type: TypeOnlineCount, Count: n})
}

func errorPayload(msg string) []byte {
	return encode(errorFrame{Type: TypeError, Message: msg})
}
