package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Admin holds the structure for the admins collection in mongo
type Admin struct {
	ID           primitive.ObjectID `json:"_id" bson:"_id"`
	Email        string             `json:"email" bson:"email"`
	Name         string             `json:"name" bson:"name"`
	PasswordHash string             `json:"-" bson:"passwordHash"`
	CreatedAt    primitive.DateTime `json:"createdAt" bson:"createdAt"`
}
