package controllers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"campusmarket/database"
	"campusmarket/models"
)

func GetSellerApplications(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	filter := bson.M{"status": models.SellerStatusPending}
	if s := c.Query("status"); s != "" {
		filter["status"] = s
	}

	opts := options.Find().SetSort(bson.D{{Key: "appliedAt", Value: 1}})
	cursor, err := database.SellerProfileCollection.Find(ctx, filter, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var applications []models.SellerProfile = []models.SellerProfile{}
	if err := cursor.All(ctx, &applications); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Fetch success", "count": len(applications), "data": applications})
}

// ApproveSeller marks the application approved and promotes the user's role.
// The notification mail is best-effort.
func ApproveSeller(c *gin.Context) {
	reviewSellerApplication(c, models.SellerStatusApproved)
}

func RejectSeller(c *gin.Context) {
	reviewSellerApplication(c, models.SellerStatusRejected)
}

func reviewSellerApplication(c *gin.Context, decision string) {
	id := c.Param("id")
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid application ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var profile models.SellerProfile
	err = database.SellerProfileCollection.FindOneAndUpdate(ctx,
		bson.M{"_id": objID, "status": models.SellerStatusPending},
		bson.M{"$set": bson.M{"status": decision, "reviewedAt": time.Now()}},
		opts,
	).Decode(&profile)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Pending application not found"})
		return
	}

	if decision == models.SellerStatusApproved {
		_, err = database.UserCollection.UpdateOne(ctx,
			bson.M{"_id": profile.UserID},
			bson.M{"$set": bson.M{"role": models.RoleSeller}},
		)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to promote user"})
			return
		}
	}

	notifySellerDecision(ctx, profile, decision)

	c.JSON(http.StatusOK, gin.H{"message": "Application " + decision, "data": profile})
}

func notifySellerDecision(ctx context.Context, profile models.SellerProfile, decision string) {
	if Mail == nil {
		return
	}

	var user models.User
	if err := database.UserCollection.FindOne(ctx, bson.M{"_id": profile.UserID}).Decode(&user); err != nil {
		return
	}

	body := "Your seller application for " + profile.StoreName + " was " + decision + "."
	if err := Mail.Send(ctx, user.Email, "Seller application "+decision, body); err != nil {
		log.Println("failed to send seller decision mail:", err)
	}
}
