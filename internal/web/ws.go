package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/verhoeven/escape-controller/internal/broadcast"
)

const (
	// wsWriteWait bounds a single write to a peer.
	wsWriteWait = 10 * time.Second

	// wsPongWait is how long a peer may stay silent after the last pong.
	wsPongWait = 60 * time.Second

	// wsPingPeriod must be shorter than wsPongWait.
	wsPingPeriod = (wsPongWait * 9) / 10
)

// The panel runs on a trusted LAN; any origin may observe.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWS streams bus events over a WebSocket. The server only sends; the
// read side exists to service control frames and notice the peer leaving.
// A slow peer is bounded by its bus queue, never by server memory.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("websocket upgrade failed", "error", err)
		return
	}

	sub := s.bus.Register()
	go s.wsWritePump(conn, sub)
	s.wsReadPump(conn, sub)
}

func (s *Server) wsReadPump(conn *websocket.Conn, sub *broadcast.Subscription) {
	defer func() {
		sub.Close()
		conn.Close()
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) wsWritePump(conn *websocket.Conn, sub *broadcast.Subscription) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(map[string]string{"type": "hello"}); err != nil {
		return
	}

	for {
		select {
		case evt, open := <-sub.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !open {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
