package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Author roles for chat messages and socket connections.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Message holds the structure for the messages collection in mongo.
// Messages are immutable once created and totally ordered per ticket by
// (createdAt, _id).
type Message struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id"`
	TicketID  primitive.ObjectID `json:"ticketId" bson:"ticketId"`
	Content   string             `json:"content" bson:"content"`
	Role      string             `json:"role" bson:"role"`
	CreatedAt primitive.DateTime `json:"createdAt" bson:"createdAt"`
}
