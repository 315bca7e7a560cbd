package databases

// go generate: mockery --name TicketDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/epassport-desk/support-api/models"
)

const ticketName = "tickets"

// TicketDatabase contains the methods to use with the ticket database
type TicketDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Ticket, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Ticket, error)
	FindPage(ctx context.Context, filter interface{}, limit, page int) ([]models.Ticket, error)
	InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*models.Ticket, error)
	CountDocuments(context.Context, interface{}, ...*options.CountOptions) (int64, error)
}

type ticketDatabase struct {
	db DatabaseHelper
}

// NewTicketDatabase initializes a new instance of ticket database with the provided db connection
func NewTicketDatabase(db DatabaseHelper) TicketDatabase {
	return &ticketDatabase{
		db: db,
	}
}

func (t *ticketDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Ticket, error) {
	ticket := &models.Ticket{}
	err := t.db.Collection(ticketName).FindOne(ctx, filter, opts...).Decode(&ticket)
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (t *ticketDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Ticket, error) {
	var tickets []models.Ticket
	cr, err := t.db.Collection(ticketName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cr.Close(ctx)
	err = cr.All(ctx, &tickets)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// FindPage returns one page of tickets matching filter, newest first.
// page is zero-based.
func (t *ticketDatabase) FindPage(ctx context.Context, filter interface{}, limit, page int) ([]models.Ticket, error) {
	opts := newMongoPaginate(limit, page+1).getPaginatedOpts()
	opts.SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return t.Find(ctx, filter, opts)
}

func (t *ticketDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	res, err := t.db.Collection(ticketName).InsertOne(ctx, document, opts...)
	return res, err
}

func (t *ticketDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*models.Ticket, error) {
	err := t.db.Collection(ticketName).UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return nil, err
	}
	ticket := &models.Ticket{}
	err = t.db.Collection(ticketName).FindOne(ctx, filter).Decode(&ticket)
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (t *ticketDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return t.db.Collection(ticketName).CountDocuments(ctx, filter, opts...)
}
