// internal/httpserver/ws.go
//
// Live state push over WebSocket. Each connected client gets its session
// snapshot whenever a handler mutates it (new round, guess, name set, bonus).
// The socket is push-only; inbound frames are drained and discarded.

package httpserver

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/worldepixel/worlde-server/internal/session"
)

// hub tracks open sockets per player. One player may hold several tabs.
type hub struct {
	mu       sync.Mutex
	conns    map[string][]*websocket.Conn
	upgrader websocket.Upgrader
}

func newHub(clientOrigin string) *hub {
	return &hub{
		conns: make(map[string][]*websocket.Conn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == clientOrigin
			},
		},
	}
}

// add registers a socket under userID.
func (h *hub) add(userID string, c *websocket.Conn) {
	h.mu.Lock()
	h.conns[userID] = append(h.conns[userID], c)
	h.mu.Unlock()
}

// remove drops a socket; the entry disappears when the last tab closes.
func (h *hub) remove(userID string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.conns[userID]
	for i, cc := range list {
		if cc == c {
			h.conns[userID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(h.conns[userID]) == 0 {
		delete(h.conns, userID)
	}
}

// push sends a snapshot to every socket the player has open. The lock also
// serializes writers per connection. Write failures close the socket; the
// read loop then unregisters it.
func (h *hub) push(userID string, snap session.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.conns[userID] {
		if err := c.WriteJSON(snap); err != nil {
			log.Debug().Err(err).Str("user", userID).Msg("ws push")
			_ = c.Close()
		}
	}
}

// handleWS upgrades the connection and streams session snapshots until the
// client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	c := s.controllerFor(w, r)
	conn, err := s.hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("ws upgrade")
		return
	}
	// Initial state so the client can render without a second round-trip.
	// Written before registration so no push can interleave with it.
	if err := conn.WriteJSON(c.Snapshot()); err != nil {
		_ = conn.Close()
		return
	}

	userID := c.UserID()
	s.hub.add(userID, conn)
	wsConnections.Inc()
	defer func() {
		s.hub.remove(userID, conn)
		wsConnections.Dec()
		_ = conn.Close()
	}()

	// Drain inbound frames; the protocol is server-push only.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
