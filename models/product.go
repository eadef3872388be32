package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title" binding:"required"`
	Description string             `bson:"description" json:"description"`
	Price       float64            `bson:"price" json:"price" binding:"required"`
	Stock       int                `bson:"stock" json:"stock"`
	Seller      primitive.ObjectID `bson:"seller" json:"seller"`
	Category    string             `bson:"category,omitempty" json:"category,omitempty"`
	Images      []string           `bson:"images,omitempty" json:"images,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
