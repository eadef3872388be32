// Package checkout implements the checkout-to-chat notification pipeline:
// per cart line it reserves stock, validates the seller, suppresses
// duplicates and emits a chat message plus a thread-summary record, rolling
// the reservation back when a pre-commit step fails.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"campusmarket/models"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrBuyerNotFound    = errors.New("buyer not found")
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrRateLimited      = errors.New("rate limited")
)

const (
	// attemptWindow bounds how far back attempts count toward the limit.
	attemptWindow = 5 * time.Minute
	attemptLimit  = 10
	// duplicateWindow is the courtesy de-dup horizon on the thread log,
	// independent of attempt ids.
	duplicateWindow = 30 * time.Second
)

// UserStore returns (nil, nil) when the user does not exist.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// ProductStore wraps the stock ledger. Reserve performs the conditional
// decrement "stock -= qty where stock >= qty" and returns (nil, nil) when no
// document matched; Release is its compensating increment.
type ProductStore interface {
	Reserve(ctx context.Context, productID string, qty int) (*models.Product, error)
	Release(ctx context.Context, productID string, qty int) error
	Get(ctx context.Context, productID string) (*models.Product, error)
}

// AttemptLedger is the short-TTL record store behind duplicate-submission
// suppression and rate limiting.
type AttemptLedger interface {
	Exists(ctx context.Context, attemptID string) (bool, error)
	CountSince(ctx context.Context, buyerID string, since time.Time) (int64, error)
	Record(ctx context.Context, rec *models.AttemptRecord) error
}

// ChatWriter is the slice of the chat store the pipeline writes through.
type ChatWriter interface {
	AppendMessage(ctx context.Context, threadID string, msg *models.ChatMessage) (string, error)
	RecentMessages(ctx context.Context, threadID string, since int64) ([]models.ChatMessage, error)
	UpsertSummary(ctx context.Context, threadID string, sum *models.ThreadSummary) error
}

// NameResolver yields a displayable name for a user id, never failing.
type NameResolver interface {
	Resolve(ctx context.Context, userID string) string
}

type NotifiedSeller struct {
	SellerID   string  `json:"sellerId"`
	SellerName string  `json:"sellerName"`
	Product    string  `json:"productTitle"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
}

type FailedItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"`
}

type Result struct {
	NotifiedSellers []NotifiedSeller `json:"sellers"`
	FailedItems     []FailedItem     `json:"failedItems,omitempty"`
	AttemptID       string           `json:"attemptId"`
}

type Notifier struct {
	Users    UserStore
	Products ProductStore
	Attempts AttemptLedger
	Chat     ChatWriter
	Names    NameResolver

	// Now is swappable in tests; defaults to time.Now.
	Now func() time.Time
}

func (n *Notifier) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

// Checkout runs the pipeline for one submission. Request-level failures
// (invalid input, unknown buyer, duplicate attempt, rate limit) abort the
// whole call; per-item failures are collected into the result and never
// abort the batch.
func (n *Notifier) Checkout(ctx context.Context, buyerID string, items []models.AttemptLine, attemptID string) (*Result, error) {
	if buyerID == "" || len(items) == 0 {
		return nil, ErrInvalidInput
	}

	buyer, err := n.Users.GetUser(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("resolve buyer: %w", err)
	}
	if buyer == nil {
		return nil, ErrBuyerNotFound
	}

	if attemptID != "" {
		seen, err := n.Attempts.Exists(ctx, attemptID)
		if err != nil {
			return nil, fmt.Errorf("attempt lookup: %w", err)
		}
		if seen {
			return nil, ErrDuplicateRequest
		}
	}

	count, err := n.Attempts.CountSince(ctx, buyerID, n.now().Add(-attemptWindow))
	if err != nil {
		return nil, fmt.Errorf("attempt count: %w", err)
	}
	if count >= attemptLimit {
		return nil, ErrRateLimited
	}

	if attemptID == "" {
		attemptID = uuid.NewString()
	}

	// Recorded before any item work so a crash mid-processing still blocks
	// an immediate retry of the same attemptId.
	rec := &models.AttemptRecord{
		BuyerID:   buyerID,
		CartItems: items,
		AttemptID: attemptID,
		CreatedAt: n.now(),
	}
	if err := n.Attempts.Record(ctx, rec); err != nil {
		return nil, fmt.Errorf("record attempt: %w", err)
	}

	// A malformed payload can carry the same line twice; process each
	// (productId, quantity) pair once.
	seen := make(map[string]bool, len(items))
	var unique []models.AttemptLine
	for _, line := range items {
		key := fmt.Sprintf("%s|%d", line.ProductID, line.Quantity)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, line)
	}

	result := &Result{AttemptID: attemptID}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, line := range unique {
		wg.Add(1)
		go func(line models.AttemptLine) {
			defer wg.Done()
			ok, failed := n.processItem(ctx, buyerID, buyer.Name, line)
			mu.Lock()
			defer mu.Unlock()
			if failed != nil {
				result.FailedItems = append(result.FailedItems, *failed)
				return
			}
			result.NotifiedSellers = append(result.NotifiedSellers, *ok)
		}(line)
	}
	wg.Wait()

	return result, nil
}
