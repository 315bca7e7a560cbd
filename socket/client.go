package socket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Client supervises one physical connection: it owns the websocket, the
// outbound send buffer, and the connection's room memberships. Destroyed
// when the transport disconnects.
type Client struct {
	ID string

	registry *Registry
	hub      *Hub
	relay    *Relay

	conn *websocket.Conn

	sendMu sync.Mutex
	send   chan []byte
	closed bool

	// rooms is owned by the hub and guarded by its mutex.
	rooms map[string]bool
}

type eventHandler func(c *Client, env *Envelope) error

// dispatch maps inbound event names to their handlers. Every inbound event
// yields exactly one outcome: a successful effect (plus ack if requested) or
// a single error event / negative ack.
var dispatch = map[string]eventHandler{
	EventAuthenticate:       (*Client).handleAuthenticate,
	EventJoinTicket:         (*Client).handleJoinTicket,
	EventLeaveTicket:        (*Client).handleLeaveTicket,
	EventMessage:            (*Client).handleMessage,
	EventRequestClosure:     (*Client).handleRequestClosure,
	EventConfirmClosure:     (*Client).handleConfirmClosure,
	EventDeclineClosure:     (*Client).handleDeclineClosure,
	EventUpdateTicketStatus: (*Client).handleUpdateStatus,
}

func newClient(id string, conn *websocket.Conn, registry *Registry, hub *Hub, relay *Relay) *Client {
	return &Client{
		ID:       id,
		registry: registry,
		hub:      hub,
		relay:    relay,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		rooms:    make(map[string]bool),
	}
}

// enqueue hands a frame to the write pump without blocking; a client whose
// buffer is full misses the frame rather than stalling a broadcast.
func (c *Client) enqueue(frame []byte) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- frame:
	default:
		zap.S().Warnw("dropping frame for slow client", "connId", c.ID)
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.disconnect()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.S().Debugw("unexpected close", "connId", c.ID, "error", err)
			}
			return
		}

		env := &Envelope{}
		if err := json.Unmarshal(raw, env); err != nil {
			c.sendError(&Error{Code: "badRequest", Message: "malformed event"})
			continue
		}

		handler, ok := dispatch[env.Event]
		if !ok {
			c.sendError(&Error{Code: "badRequest", Message: "unknown event: " + env.Event})
			continue
		}

		if err := handler(c, env); err != nil {
			perr := AsError(err)
			c.sendError(perr)
			if env.AckID != "" {
				c.sendAck(env.AckID, false, perr)
			}
			continue
		}
		if env.AckID != "" {
			c.sendAck(env.AckID, true, nil)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// disconnect runs the synchronous cleanup path: leave every room, then drop
// the registry entry. A transport drop is not an application error.
func (c *Client) disconnect() {
	c.hub.RemoveAll(c)
	c.registry.Unregister(c.ID)
	c.closeSend()
	zap.S().Infow("client disconnected", "connId", c.ID)
}

func (c *Client) sendError(e *Error) {
	c.enqueue(encodeEvent(EventError, ErrorPayload{Code: e.Code, Message: e.Message}))
}

func (c *Client) sendAck(ackID string, success bool, e *Error) {
	p := AckPayload{AckID: ackID, Success: success}
	if e != nil {
		p.Error = e.Code
	}
	c.enqueue(encodeEvent(EventAck, p))
}

func (c *Client) handleAuthenticate(env *Envelope) error {
	var p AuthenticatePayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return ErrAuthFailed
	}

	sess, err := c.registry.Authenticate(c.ID, p)
	if err != nil {
		return err
	}

	c.enqueue(encodeEvent(EventAuthenticated, AuthenticatedPayload{Status: "success", Role: sess.Role}))
	zap.S().Infow("client authenticated", "connId", c.ID, "role", sess.Role)
	return nil
}

func (c *Client) handleJoinTicket(env *Envelope) error {
	var p TicketPayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.TicketID == "" {
		return ErrTicketNotFound
	}
	return c.hub.Join(context.Background(), c, p.TicketID)
}

func (c *Client) handleLeaveTicket(env *Envelope) error {
	var p TicketPayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.TicketID == "" {
		return ErrTicketNotFound
	}
	c.hub.Leave(c, p.TicketID)
	return nil
}

func (c *Client) handleMessage(env *Envelope) error {
	var p MessagePayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.TicketID == "" {
		return ErrTicketNotFound
	}
	return c.relay.SendMessage(context.Background(), c, p.TicketID, p.Content)
}

func (c *Client) handleRequestClosure(env *Envelope) error {
	var p TicketPayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.TicketID == "" {
		return ErrTicketNotFound
	}
	return c.relay.RequestClosure(context.Background(), c, p.TicketID)
}

func (c *Client) handleConfirmClosure(env *Envelope) error {
	var p TicketPayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.TicketID == "" {
		return ErrTicketNotFound
	}
	return c.relay.ConfirmClosure(context.Background(), c, p.TicketID)
}

func (c *Client) handleDeclineClosure(env *Envelope) error {
	var p TicketPayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.TicketID == "" {
		return ErrTicketNotFound
	}
	return c.relay.DeclineClosure(context.Background(), c, p.TicketID)
}

func (c *Client) handleUpdateStatus(env *Envelope) error {
	var p StatusPayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.TicketID == "" {
		return ErrTicketNotFound
	}
	return c.relay.UpdateStatus(context.Background(), c, p.TicketID, p.Status)
}
