package socket

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/epassport-desk/support-api/databases"
	"github.com/epassport-desk/support-api/models"
)

// TicketStore is the persistence contract the realtime core consumes. The
// store is the single source of truth for ticket status and messages; room
// membership is never persisted.
type TicketStore interface {
	GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error)
	UpdateStatus(ctx context.Context, ticketID, status string) (*models.Ticket, error)
	RequestClosure(ctx context.Context, ticketID string) (*models.Ticket, error)
	ConfirmClosure(ctx context.Context, ticketID string) (*models.Ticket, error)
	DeclineClosure(ctx context.Context, ticketID string) (*models.Ticket, error)
	AppendMessage(ctx context.Context, ticketID, content, role string) (*models.Message, error)
	ListMessages(ctx context.Context, ticketID string) ([]models.Message, error)
	ListPendingClosuresBefore(ctx context.Context, cutoff time.Time) ([]models.Ticket, error)
}

type mongoTicketStore struct {
	tickets  databases.TicketDatabase
	messages databases.MessageDatabase
}

// NewTicketStore wraps the ticket and message databases into the store the
// relay and hub operate on.
func NewTicketStore(tickets databases.TicketDatabase, messages databases.MessageDatabase) TicketStore {
	return &mongoTicketStore{tickets: tickets, messages: messages}
}

func (s *mongoTicketStore) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	oid, err := primitive.ObjectIDFromHex(ticketID)
	if err != nil {
		return nil, ErrTicketNotFound
	}
	ticket, err := s.tickets.FindOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return ticket, nil
}

// UpdateStatus commits a direct status transition. Closing a ticket resolves
// any outstanding closure request, so pendingClosure is cleared whenever the
// new status is CLOSED (pendingClosure is never true on a CLOSED ticket).
func (s *mongoTicketStore) UpdateStatus(ctx context.Context, ticketID, status string) (*models.Ticket, error) {
	set := bson.M{
		"status":    status,
		"updatedAt": primitive.NewDateTimeFromTime(time.Now()),
	}
	if status == models.TicketStatusClosed {
		set["pendingClosure"] = false
		set["closureRequestedAt"] = nil
	}
	return s.updateTicket(ctx, ticketID, set)
}

func (s *mongoTicketStore) RequestClosure(ctx context.Context, ticketID string) (*models.Ticket, error) {
	now := primitive.NewDateTimeFromTime(time.Now())
	return s.updateTicket(ctx, ticketID, bson.M{
		"pendingClosure":     true,
		"confirmedByUser":    false,
		"closureRequestedAt": now,
		"updatedAt":          now,
	})
}

func (s *mongoTicketStore) ConfirmClosure(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return s.updateTicket(ctx, ticketID, bson.M{
		"status":             models.TicketStatusClosed,
		"pendingClosure":     false,
		"confirmedByUser":    true,
		"closureRequestedAt": nil,
		"updatedAt":          primitive.NewDateTimeFromTime(time.Now()),
	})
}

func (s *mongoTicketStore) DeclineClosure(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return s.updateTicket(ctx, ticketID, bson.M{
		"pendingClosure":     false,
		"closureRequestedAt": nil,
		"updatedAt":          primitive.NewDateTimeFromTime(time.Now()),
	})
}

func (s *mongoTicketStore) AppendMessage(ctx context.Context, ticketID, content, role string) (*models.Message, error) {
	oid, err := primitive.ObjectIDFromHex(ticketID)
	if err != nil {
		return nil, ErrTicketNotFound
	}
	msg := models.Message{
		ID:        primitive.NewObjectID(),
		TicketID:  oid,
		Content:   content,
		Role:      role,
		CreatedAt: primitive.NewDateTimeFromTime(time.Now()),
	}
	if _, err := s.messages.InsertOne(ctx, msg); err != nil {
		return nil, mapStoreErr(err)
	}
	return &msg, nil
}

// ListMessages returns the full ordered message log for a ticket, oldest
// first, ties broken by id.
func (s *mongoTicketStore) ListMessages(ctx context.Context, ticketID string) ([]models.Message, error) {
	oid, err := primitive.ObjectIDFromHex(ticketID)
	if err != nil {
		return nil, ErrTicketNotFound
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "createdAt", Value: 1},
		{Key: "_id", Value: 1},
	})
	messages, err := s.messages.Find(ctx, bson.M{"ticketId": oid}, opts)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return messages, nil
}

func (s *mongoTicketStore) ListPendingClosuresBefore(ctx context.Context, cutoff time.Time) ([]models.Ticket, error) {
	tickets, err := s.tickets.Find(ctx, bson.M{
		"pendingClosure":     true,
		"closureRequestedAt": bson.M{"$lt": primitive.NewDateTimeFromTime(cutoff)},
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return tickets, nil
}

func (s *mongoTicketStore) updateTicket(ctx context.Context, ticketID string, set bson.M) (*models.Ticket, error) {
	oid, err := primitive.ObjectIDFromHex(ticketID)
	if err != nil {
		return nil, ErrTicketNotFound
	}
	ticket, err := s.tickets.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return ticket, nil
}

func mapStoreErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrTicketNotFound
	}
	return StoreFailure(err)
}
