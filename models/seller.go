package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	SellerStatusPending  = "pending"
	SellerStatusApproved = "approved"
	SellerStatusRejected = "rejected"
)

// SellerProfile holds a user's storefront details and the state of their
// seller application.
type SellerProfile struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"userId" json:"userId"`
	StoreName  string             `bson:"storeName" json:"storeName"`
	Contact    string             `bson:"contact,omitempty" json:"contact,omitempty"`
	Status     string             `bson:"status" json:"status"`
	AppliedAt  time.Time          `bson:"appliedAt" json:"appliedAt"`
	ReviewedAt time.Time          `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
}
