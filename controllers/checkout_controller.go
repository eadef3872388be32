package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"campusmarket/checkout"
	"campusmarket/models"
)

// CheckoutRunner is the slice of checkout.Notifier the controller needs;
// tests substitute a mock.
type CheckoutRunner interface {
	Checkout(ctx context.Context, buyerID string, items []models.AttemptLine, attemptID string) (*checkout.Result, error)
}

type CheckoutController struct {
	Runner CheckoutRunner
}

// Notify runs the checkout-to-chat pipeline for the authenticated buyer.
// Per-item failures come back inside a 200 response; only structurally
// invalid, duplicate or rate-limited requests fail the whole call.
func (ctl *CheckoutController) Notify(c *gin.Context) {
	buyerID := c.MustGet("userId").(string)

	var body struct {
		CartItems []models.AttemptLine `json:"cartItems" binding:"required"`
		AttemptID string               `json:"attemptId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || len(body.CartItems) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cartItems"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := ctl.Runner.Checkout(ctx, buyerID, body.CartItems, body.AttemptID)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		case errors.Is(err, checkout.ErrBuyerNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Buyer not found"})
		case errors.Is(err, checkout.ErrDuplicateRequest):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Duplicate checkout attempt"})
		case errors.Is(err, checkout.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many checkout attempts, try again later"})
		default:
			log.Println("checkout failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Checkout failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"sellers":     result.NotifiedSellers,
		"failedItems": result.FailedItems,
		"attemptId":   result.AttemptID,
	})
}
