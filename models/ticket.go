package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Ticket status values. A ticket moves OPEN -> IN_PROGRESS -> CLOSED,
// with CLOSED -> IN_PROGRESS (admin) and CLOSED -> OPEN (user) reopens.
const (
	TicketStatusOpen       = "OPEN"
	TicketStatusInProgress = "IN_PROGRESS"
	TicketStatusClosed     = "CLOSED"
)

// Ticket holds the structure for the tickets collection in mongo
type Ticket struct {
	ID         primitive.ObjectID `json:"_id" bson:"_id"`
	Status     string             `json:"status" bson:"status"`
	SessionID  string             `json:"sessionId" bson:"sessionId"`
	PassportID string             `json:"passportId,omitempty" bson:"passportId,omitempty"`
	Subject    string             `json:"subject,omitempty" bson:"subject,omitempty"`

	// PendingClosure marks an outstanding admin closure request awaiting
	// user consent. Never true on a CLOSED ticket.
	PendingClosure     bool                `json:"pendingClosure" bson:"pendingClosure"`
	ConfirmedByUser    bool                `json:"confirmedByUser" bson:"confirmedByUser"`
	ClosureRequestedAt *primitive.DateTime `json:"closureRequestedAt,omitempty" bson:"closureRequestedAt,omitempty"`

	CreatedAt primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}

// ValidTicketStatus reports whether s is one of the three ticket statuses.
func ValidTicketStatus(s string) bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusClosed:
		return true
	}
	return false
}
