package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AttemptLine is one cart line as submitted by the buyer.
type AttemptLine struct {
	ProductID string `bson:"productId" json:"productId" binding:"required"`
	Quantity  int    `bson:"quantity" json:"quantity" binding:"required"`
}

// AttemptRecord tracks one logical checkout submission. The collection has a
// unique index on attemptId and a 5-minute TTL index on createdAt, so records
// expire on their own and are never deleted explicitly.
type AttemptRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	BuyerID   string             `bson:"buyerId" json:"buyerId"`
	CartItems []AttemptLine      `bson:"cartItems" json:"cartItems"`
	AttemptID string             `bson:"attemptId" json:"attemptId"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
