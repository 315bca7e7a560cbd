package socket

import "encoding/json"

// Inbound event names.
const (
	EventAuthenticate       = "authenticate"
	EventJoinTicket         = "joinTicket"
	EventLeaveTicket        = "leaveTicket"
	EventMessage            = "message"
	EventRequestClosure     = "requestClosure"
	EventConfirmClosure     = "confirmClosure"
	EventDeclineClosure     = "declineClosure"
	EventUpdateTicketStatus = "updateTicketStatus"
)

// Outbound event names.
const (
	EventAuthenticated       = "authenticated"
	EventLoadMessages        = "loadMessages"
	EventNewMessage          = "newMessage"
	EventTicketStatusUpdated = "ticketStatusUpdated"
	EventClosureRequested    = "closureRequested"
	EventClosureDeclined     = "closureDeclined"
	EventParticipantJoined   = "participantJoined"
	EventParticipantLeft     = "participantLeft"
	EventError               = "error"
	EventAck                 = "ack"
)

// Envelope is the wire framing for every event in both directions. Inbound
// frames that expect an acknowledgement carry a client-chosen AckID; the
// server answers with an `ack` frame echoing it.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	AckID string          `json:"ackId,omitempty"`
}

// AuthenticatePayload binds an identity to a connection. Users carry the
// opaque browser session identifier; admins carry a signed JWT issued by the
// REST login endpoint.
type AuthenticatePayload struct {
	Role      string `json:"role"`
	SessionID string `json:"sessionId,omitempty"`
	Token     string `json:"token,omitempty"`
}

// TicketPayload addresses a single ticket by its hex object id.
type TicketPayload struct {
	TicketID string `json:"ticketId"`
}

// MessagePayload carries one chat message to a ticket room.
type MessagePayload struct {
	TicketID string `json:"ticketId"`
	Content  string `json:"content"`
}

// StatusPayload requests a direct status transition.
type StatusPayload struct {
	TicketID string `json:"ticketId"`
	Status   string `json:"status"`
}

// AuthenticatedPayload confirms a successful authenticate.
type AuthenticatedPayload struct {
	Status string `json:"status"`
	Role   string `json:"role"`
}

// StatusUpdatedPayload announces a committed status change to the room.
type StatusUpdatedPayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ClosurePayload announces closure sub-protocol events. Expired is set when
// the sweeper auto-declines a stale request.
type ClosurePayload struct {
	TicketID string `json:"ticketId"`
	Expired  bool   `json:"expired,omitempty"`
}

// ParticipantPayload announces room membership changes; role only, no PII.
type ParticipantPayload struct {
	Role string `json:"role"`
}

// ErrorPayload reports a rejected action to the originating connection.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AckPayload answers an acked inbound event.
type AckPayload struct {
	AckID   string `json:"ackId"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func encodeEvent(event string, data interface{}) []byte {
	var raw json.RawMessage
	if data != nil {
		raw, _ = json.Marshal(data)
	}
	b, _ := json.Marshal(Envelope{Event: event, Data: raw})
	return b
}
