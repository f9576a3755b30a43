package realtime

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = 54 * time.Second // must be less than pongWait
	maxFrameBytes = 4096
)

// checkOrigin allows same-host requests, non-browser clients (no Origin),
// and the configured client origin.
func (h *Hub) checkOrigin(r *http.Request) bool {
	allowed := h.opts.AllowedOrigin
	origin := r.Header.Get("Origin")
	if origin == "" || allowed == "" || allowed == "*" || origin == allowed {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	h.log.Warn().Str("origin", origin).Msg("rejected websocket origin")
	return false
}

// ServeWS upgrades the request and runs the connection until either side
// closes it. The read loop runs on the calling goroutine, so one connection's
// frames are handled one at a time, in order.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	ctx := context.WithoutCancel(r.Context())

	c := h.Connect(ctx)
	go h.writePump(ws, c)
	h.readPump(ctx, ws, c)
}

func (h *Hub) readPump(ctx context.Context, ws *websocket.Conn, c *Conn) {
	defer func() {
		h.Disconnect(c)
		_ = ws.Close()
	}()

	ws.SetReadLimit(maxFrameBytes)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Str("conn", c.ID()).Msg("websocket read error")
			}
			return
		}
		h.HandleFrame(ctx, c, data)
	}
}

func (h *Hub) writePump(ws *websocket.Conn, c *Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Outbound():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.Debug().Err(err).Str("conn", c.ID()).Msg("websocket write error")
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
