package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"campusmarket/database"
	"campusmarket/models"
)

// ApplySeller files a seller application for the authenticated user. One
// application at a time: a pending or approved profile blocks a new one.
func ApplySeller(c *gin.Context) {
	userID, _ := primitive.ObjectIDFromHex(c.MustGet("userId").(string))

	var body struct {
		StoreName string `json:"storeName" binding:"required"`
		Contact   string `json:"contact"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var existing models.SellerProfile
	err := database.SellerProfileCollection.FindOne(ctx, bson.M{
		"userId": userID,
		"status": bson.M{"$in": []string{models.SellerStatusPending, models.SellerStatusApproved}},
	}).Decode(&existing)
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Application already " + existing.Status})
		return
	}
	if err != mongo.ErrNoDocuments {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check applications"})
		return
	}

	profile := models.SellerProfile{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		StoreName: body.StoreName,
		Contact:   body.Contact,
		Status:    models.SellerStatusPending,
		AppliedAt: time.Now(),
	}

	if _, err := database.SellerProfileCollection.InsertOne(ctx, profile); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit application"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Application submitted", "data": profile})
}

func GetMyApplication(c *gin.Context) {
	userID, _ := primitive.ObjectIDFromHex(c.MustGet("userId").(string))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "appliedAt", Value: -1}})
	var profile models.SellerProfile
	err := database.SellerProfileCollection.FindOne(ctx, bson.M{"userId": userID}, opts).Decode(&profile)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No application found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Fetch success", "data": profile})
}
