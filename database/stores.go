package database

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"campusmarket/models"
)

// MongoUserStore implements checkout.UserStore over the users collection.
type MongoUserStore struct {
	Col *mongo.Collection
}

func (s *MongoUserStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var user models.User
	err = s.Col.FindOne(ctx, bson.M{"_id": oid}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// MongoProductStore implements checkout.ProductStore. Reserve is the single
// atomic primitive in the pipeline: a conditional decrement scoped to one
// product document.
type MongoProductStore struct {
	Col *mongo.Collection
}

// Reserve decrements stock by qty where stock >= qty and returns the
// pre-decrement document, or (nil, nil) when nothing matched (product absent
// or insufficient stock).
func (s *MongoProductStore) Reserve(ctx context.Context, productID string, qty int) (*models.Product, error) {
	oid, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return nil, nil
	}

	var product models.Product
	err = s.Col.FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid, "stock": bson.M{"$gte": qty}},
		bson.M{"$inc": bson.M{"stock": -qty}},
	).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// Release adds qty back, compensating a reservation.
func (s *MongoProductStore) Release(ctx context.Context, productID string, qty int) error {
	oid, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return err
	}
	_, err = s.Col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$inc": bson.M{"stock": qty}})
	return err
}

func (s *MongoProductStore) Get(ctx context.Context, productID string) (*models.Product, error) {
	oid, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return nil, nil
	}
	var product models.Product
	err = s.Col.FindOne(ctx, bson.M{"_id": oid}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// MongoAttemptLedger implements checkout.AttemptLedger over the TTL-expiring
// checkout_attempts collection.
type MongoAttemptLedger struct {
	Col *mongo.Collection
}

func (s *MongoAttemptLedger) Exists(ctx context.Context, attemptID string) (bool, error) {
	err := s.Col.FindOne(ctx, bson.M{"attemptId": attemptID}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *MongoAttemptLedger) CountSince(ctx context.Context, buyerID string, since time.Time) (int64, error) {
	return s.Col.CountDocuments(ctx, bson.M{
		"buyerId":   buyerID,
		"createdAt": bson.M{"$gte": since},
	})
}

func (s *MongoAttemptLedger) Record(ctx context.Context, rec *models.AttemptRecord) error {
	_, err := s.Col.InsertOne(ctx, rec)
	return err
}

// SellerDisplayName returns the approved storefront name for a seller, or ""
// when there is none. Used by the name cache to prefer the store name over
// the account name.
func SellerDisplayName(ctx context.Context, userID string) (string, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return "", nil
	}
	var profile models.SellerProfile
	err = SellerProfileCollection.FindOne(ctx, bson.M{
		"userId": oid,
		"status": models.SellerStatusApproved,
	}).Decode(&profile)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return profile.StoreName, nil
}
