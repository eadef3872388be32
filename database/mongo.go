package database

import (
	"context"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var Client *mongo.Client
var DB *mongo.Database

func ConnectMongo() {
	uri := os.Getenv("MONGO_URI")
	dbName := os.Getenv("DB_NAME")

	if uri == "" || dbName == "" {
		log.Fatal("❌ MONGO_URI or DB_NAME not set in environment variables")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		log.Fatal("❌ MongoDB connection error:", err)
	}

	Client = client
	DB = client.Database(dbName)

	log.Println("✅ Connected to MongoDB")
}

var UserCollection *mongo.Collection
var ProductCollection *mongo.Collection
var OrderCollection *mongo.Collection
var CartCollection *mongo.Collection
var SellerProfileCollection *mongo.Collection
var AttemptCollection *mongo.Collection
var EmailOTPCollection *mongo.Collection

func InitCollections() {
	UserCollection = DB.Collection("users")
	ProductCollection = DB.Collection("products")
	OrderCollection = DB.Collection("orders")
	CartCollection = DB.Collection("carts")
	SellerProfileCollection = DB.Collection("seller_profiles")
	AttemptCollection = DB.Collection("checkout_attempts")
	EmailOTPCollection = DB.Collection("email_otps")
}

// EnsureIndexes creates the indexes the runtime relies on. The TTL index on
// checkout_attempts is what makes attempt records expire after 5 minutes
// without any explicit cleanup.
func EnsureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := AttemptCollection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "attemptId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(300),
		},
		{
			Keys: bson.D{{Key: "buyerId", Value: 1}, {Key: "createdAt", Value: -1}},
		},
	})
	if err != nil {
		log.Fatal("❌ Failed to create checkout_attempts indexes:", err)
	}

	_, err = UserCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		log.Fatal("❌ Failed to create users email index:", err)
	}

	_, err = EmailOTPCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		log.Fatal("❌ Failed to create email_otps TTL index:", err)
	}

	log.Println("✅ Mongo indexes ensured")
}
