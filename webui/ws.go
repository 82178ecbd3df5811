package webui

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage is the outgoing refresh signal. The client re-fetches state or
// notifications when it sees one; no payload travels over the socket.
type wsMessage struct {
	Type string `json:"type"` // "state" or "notifications"
}

// hub tracks connected preview sockets and fan-outs refresh signals.
type hub struct {
	mu     sync.Mutex
	conns  map[*websocket.Conn]bool
	logger *slog.Logger
}

func newHub(logger *slog.Logger) *hub {
	return &hub{conns: make(map[*websocket.Conn]bool), logger: logger}
}

func (h *hub) add(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = true
	h.mu.Unlock()
}

func (h *hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
	c.Close()
}

// broadcast writes msg to every socket, dropping those that fail. The hub
// lock is held for the whole fan-out because gorilla connections do not
// allow concurrent writers.
func (h *hub) broadcast(msg wsMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		if err := c.WriteJSON(msg); err != nil {
			h.logger.Debug("webui: websocket write failed, dropping", "error", err)
			delete(h.conns, c)
			c.Close()
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.cfg.Logger.Warn("webui: websocket upgrade", "error", err)
		return
	}
	s.hub.add(conn)

	// Drain incoming frames so pings and close handshakes are processed.
	go func() {
		defer s.hub.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// NotifyChanged pushes a notification refresh to connected clients. Wire it
// as the notify Center's OnChange hook.
func (s *Server) NotifyChanged() {
	s.hub.broadcast(wsMessage{Type: "notifications"})
}
