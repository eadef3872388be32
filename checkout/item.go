package checkout

import (
	"context"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"campusmarket/chat"
	"campusmarket/models"
)

// itemStage tracks how far a single cart line has progressed. Each stage
// declares its own compensation in compensate(); adding a failure branch to
// the pipeline therefore forces a decision about rollback.
type itemStage int

const (
	stageStart itemStage = iota
	stageReserved
	stageSellerValidated
	stageDuplicateChecked
	stageCommitted
)

// compensate undoes whatever the stage is still holding. Reservations are
// released up to the duplicate check; once a line reaches
// stageDuplicateChecked the message append is next, and a failure there
// deliberately leaves stock decremented (see processItem).
func (n *Notifier) compensate(ctx context.Context, stage itemStage, productID string, qty int) {
	switch stage {
	case stageReserved, stageSellerValidated:
		if err := n.Products.Release(ctx, productID, qty); err != nil {
			log.Printf("checkout: stock release failed for product %s (+%d): %v", productID, qty, err)
		}
	}
}

// processItem moves one cart line through
// Reserved -> SellerValidated -> DuplicateChecked -> Committed.
// It returns either a notified seller or a failed item, never both.
func (n *Notifier) processItem(ctx context.Context, buyerID, buyerName string, line models.AttemptLine) (*NotifiedSeller, *FailedItem) {
	stage := stageStart

	fail := func(reason string) (*NotifiedSeller, *FailedItem) {
		n.compensate(ctx, stage, line.ProductID, line.Quantity)
		return nil, &FailedItem{ProductID: line.ProductID, Quantity: line.Quantity, Reason: reason}
	}

	if _, err := primitive.ObjectIDFromHex(line.ProductID); err != nil {
		return fail("invalid product id")
	}
	if line.Quantity <= 0 {
		return fail("invalid quantity")
	}

	product, err := n.Products.Reserve(ctx, line.ProductID, line.Quantity)
	if err != nil {
		return fail(fmt.Sprintf("stock reservation failed: %v", err))
	}
	if product == nil {
		// No document matched. Fetch current state only to produce a
		// descriptive reason; no retry.
		current, err := n.Products.Get(ctx, line.ProductID)
		if err != nil || current == nil {
			return fail("product not found")
		}
		return fail(fmt.Sprintf("insufficient stock: requested %d, available %d", line.Quantity, current.Stock))
	}
	stage = stageReserved

	sellerID := product.Seller.Hex()
	seller, err := n.Users.GetUser(ctx, sellerID)
	if err != nil {
		return fail(fmt.Sprintf("seller lookup failed: %v", err))
	}
	if seller == nil || seller.Role != models.RoleSeller {
		return fail("seller is no longer active")
	}
	stage = stageSellerValidated

	threadID := chat.ThreadID(buyerID, sellerID)
	since := n.now().Add(-duplicateWindow).UnixMilli()
	recent, err := n.Chat.RecentMessages(ctx, threadID, since)
	if err != nil {
		return fail(fmt.Sprintf("duplicate check failed: %v", err))
	}
	for _, m := range recent {
		if m.SenderID == buyerID && m.Type == models.MessageTypeCheckout && m.ProductID == line.ProductID {
			return fail("duplicate checkout for this product within 30s")
		}
	}
	stage = stageDuplicateChecked

	msg := &models.ChatMessage{
		SenderID:   buyerID,
		ReceiverID: sellerID,
		Content:    fmt.Sprintf("%s just checked out %q (x%d)", buyerName, product.Title, line.Quantity),
		Timestamp:  n.now().UnixMilli(),
		Type:       models.MessageTypeCheckout,
		Price:      product.Price,
		ProductID:  line.ProductID,
	}
	if _, err := n.Chat.AppendMessage(ctx, threadID, msg); err != nil {
		// Known gap: the reservation is NOT released here, so stock
		// stays decremented with no message delivered. Kept pending a
		// product decision on reconciliation.
		log.Printf("checkout: chat append failed after reservation, stock stays decremented (product %s, thread %s): %v",
			line.ProductID, threadID, err)
		return nil, &FailedItem{ProductID: line.ProductID, Quantity: line.Quantity, Reason: fmt.Sprintf("chat write failed: %v", err)}
	}

	sellerName := n.Names.Resolve(ctx, sellerID)
	sum := &models.ThreadSummary{
		Users:         []string{buyerID, sellerID},
		LastMessage:   msg.Content,
		LastTimestamp: msg.Timestamp,
		ProductID:     line.ProductID,
		BuyerID:       buyerID,
		SellerID:      sellerID,
		BuyerName:     n.Names.Resolve(ctx, buyerID),
		SellerName:    sellerName,
		Quantity:      line.Quantity,
		Price:         product.Price,
	}
	if err := n.Chat.UpsertSummary(ctx, threadID, sum); err != nil {
		// Summary is a best-effort projection and must never block
		// message delivery.
		log.Printf("checkout: thread summary upsert failed (thread %s): %v", threadID, err)
	}
	stage = stageCommitted

	return &NotifiedSeller{
		SellerID:   sellerID,
		SellerName: sellerName,
		Product:    product.Title,
		Quantity:   line.Quantity,
		Price:      product.Price,
	}, nil
}
