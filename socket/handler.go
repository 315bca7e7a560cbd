package socket

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server owns the realtime stack: registry, room router, relay and the
// per-ticket locks they share. One Server is created at process startup and
// torn down with the network listener.
type Server struct {
	registry *Registry
	hub      *Hub
	relay    *Relay
	upgrader websocket.Upgrader
}

// NewServer builds the realtime stack over the given store. notifier may be
// nil. lockWait bounds per-ticket lock acquisition; zero means the default.
func NewServer(store TicketStore, jwtSecret []byte, notifier Notifier, lockWait time.Duration) *Server {
	registry := NewRegistry(jwtSecret)
	locks := newTicketLocks(lockWait)
	hub := NewHub(registry, store, locks)
	relay := NewRelay(registry, hub, store, locks, notifier)

	return &Server{
		registry: registry,
		hub:      hub,
		relay:    relay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Relay exposes the relay for collaborators that trigger room broadcasts
// from outside the socket (REST closure endpoints, the sweeper).
func (s *Server) Relay() *Relay {
	return s.relay
}

// ServeWS upgrades the request and starts the connection supervisor: the
// connection is registered unauthenticated and its read/write pumps begin.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("websocket upgrade failed", "error", err)
		return
	}

	connID := uuid.New().String()
	s.registry.Register(connID)
	c := newClient(connID, conn, s.registry, s.hub, s.relay)

	zap.S().Infow("client connected", "connId", connID)

	go c.writePump()
	go c.readPump()
}
