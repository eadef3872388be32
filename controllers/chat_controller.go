package controllers

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"campusmarket/cache"
	"campusmarket/chat"
)

type ChatController struct {
	Svc   *chat.Service
	Cache *cache.NameCache
}

// ListThreads serves the optimized thread list with short client-side
// caching: Cache-Control plus an ETag derived from the payload, answering
// If-None-Match with 304.
func (ctl *ChatController) ListThreads(c *gin.Context) {
	userID := c.MustGet("userId").(string)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	list, err := ctl.Svc.ListThreads(ctx, userID)
	if err != nil {
		log.Println("list threads failed:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load threads"})
		return
	}

	payload, err := json.Marshal(list)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load threads"})
		return
	}

	etag := fmt.Sprintf(`"%x"`, sha1.Sum(payload))
	c.Header("Cache-Control", "private, max-age=30")
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

// ThreadMessages returns a thread's full log plus its summary doc when one
// exists.
func (ctl *ChatController) ThreadMessages(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	threadID := c.Param("threadId")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msgs, err := ctl.Svc.ThreadMessages(ctx, threadID, userID)
	if err != nil {
		if errors.Is(err, chat.ErrForbidden) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant of this thread"})
			return
		}
		log.Println("thread messages failed:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load messages"})
		return
	}

	resp := gin.H{"message": "Fetch success", "data": msgs}
	if fs, ok := ctl.Svc.Store.(*chat.FirebaseStore); ok {
		if sum, err := fs.Summary(ctx, threadID); err == nil && sum != nil {
			resp["summary"] = sum
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (ctl *ChatController) MarkRead(c *gin.Context) {
	userID := c.MustGet("userId").(string)

	var body struct {
		ThreadID   string   `json:"threadId" binding:"required"`
		MessageIDs []string `json:"messageIds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := ctl.Svc.MarkRead(ctx, body.ThreadID, body.MessageIDs, userID); err != nil {
		if errors.Is(err, chat.ErrForbidden) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant of this thread"})
			return
		}
		log.Println("mark read failed:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark messages read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Marked read", "count": len(body.MessageIDs)})
}

func (ctl *ChatController) UnreadCount(c *gin.Context) {
	userID := c.MustGet("userId").(string)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count, err := ctl.Svc.UnreadCount(ctx, userID)
	if err != nil {
		log.Println("unread count failed:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count unread messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread": count})
}

// ClearCache drops the process-local name cache. Administrative escape
// hatch for stale display names.
func (ctl *ChatController) ClearCache(c *gin.Context) {
	ctl.Cache.Clear()
	c.JSON(http.StatusOK, gin.H{"message": "Name cache cleared"})
}
