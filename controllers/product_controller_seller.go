package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"campusmarket/database"
	"campusmarket/models"
)

func CreateProduct(c *gin.Context) {
	sellerID, _ := primitive.ObjectIDFromHex(c.MustGet("userId").(string))

	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "All fields are required"})
		return
	}
	if product.Stock < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Stock cannot be negative"})
		return
	}

	product.ID = primitive.NewObjectID()
	product.Seller = sellerID
	product.CreatedAt = time.Now()
	product.UpdatedAt = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := database.ProductCollection.InsertOne(ctx, product)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product created", "product": product})
}

func GetProductsSeller(c *gin.Context) {
	sellerID, _ := primitive.ObjectIDFromHex(c.MustGet("userId").(string))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cursor, err := database.ProductCollection.Find(ctx, bson.M{"seller": sellerID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var products []models.Product = []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Fetch products success",
		"count":    len(products),
		"products": products,
	})
}

func UpdateProduct(c *gin.Context) {
	sellerID, _ := primitive.ObjectIDFromHex(c.MustGet("userId").(string))

	id := c.Param("id")
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid productId"})
		return
	}

	var body struct {
		Title       *string  `json:"title"`
		Description *string  `json:"description"`
		Price       *float64 `json:"price"`
		Stock       *int     `json:"stock"`
		Category    *string  `json:"category"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if body.Stock != nil && *body.Stock < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Stock cannot be negative"})
		return
	}

	update := bson.M{}
	if body.Title != nil {
		update["title"] = *body.Title
	}
	if body.Description != nil {
		update["description"] = *body.Description
	}
	if body.Price != nil {
		update["price"] = *body.Price
	}
	if body.Stock != nil {
		update["stock"] = *body.Stock
	}
	if body.Category != nil {
		update["category"] = *body.Category
	}
	update["updatedAt"] = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updatedProduct models.Product
	err = database.ProductCollection.FindOneAndUpdate(ctx,
		bson.M{"_id": objID, "seller": sellerID},
		bson.M{"$set": update}, opts).Decode(&updatedProduct)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found or not yours"})
		return
	}

	c.JSON(http.StatusOK, updatedProduct)
}

func DeleteProduct(c *gin.Context) {
	sellerID, _ := primitive.ObjectIDFromHex(c.MustGet("userId").(string))

	id := c.Param("id")
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid productId"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := database.ProductCollection.DeleteOne(ctx, bson.M{"_id": objID, "seller": sellerID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete product"})
		return
	}
	if res.DeletedCount == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found or not yours"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product deleted", "id": id})
}
