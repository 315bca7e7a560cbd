package databases

// go generate: mockery --name AdminDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/epassport-desk/support-api/models"
)

const adminName = "admins"

// AdminDatabase contains the methods to use with the admin database
type AdminDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Admin, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Admin, error)
	InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (InsertOneResultHelper, error)
}

type adminDatabase struct {
	db DatabaseHelper
}

// NewAdminDatabase initializes a new instance of admin database with the provided db connection
func NewAdminDatabase(db DatabaseHelper) AdminDatabase {
	return &adminDatabase{
		db: db,
	}
}

func (a *adminDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Admin, error) {
	admin := &models.Admin{}
	err := a.db.Collection(adminName).FindOne(ctx, filter, opts...).Decode(&admin)
	if err != nil {
		return nil, err
	}
	return admin, nil
}

func (a *adminDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Admin, error) {
	var admins []models.Admin
	cr, err := a.db.Collection(adminName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cr.Close(ctx)
	err = cr.All(ctx, &admins)
	if err != nil {
		return nil, err
	}
	return admins, nil
}

func (a *adminDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	res, err := a.db.Collection(adminName).InsertOne(ctx, document, opts...)
	return res, err
}
