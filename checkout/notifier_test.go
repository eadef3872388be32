package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"campusmarket/chat"
	"campusmarket/models"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func (m *memUsers) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

type memProducts struct {
	mu       sync.Mutex
	products map[string]*models.Product
}

func (m *memProducts) Reserve(_ context.Context, productID string, qty int) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok || p.Stock < qty {
		return nil, nil
	}
	before := *p
	p.Stock -= qty
	return &before, nil
}

func (m *memProducts) Release(_ context.Context, productID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.products[productID]; ok {
		p.Stock += qty
	}
	return nil
}

func (m *memProducts) Get(_ context.Context, productID string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (m *memProducts) stock(productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[productID].Stock
}

type memAttempts struct {
	mu      sync.Mutex
	records []models.AttemptRecord
}

func (m *memAttempts) Exists(_ context.Context, attemptID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.AttemptID == attemptID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memAttempts) CountSince(_ context.Context, buyerID string, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.records {
		if r.BuyerID == buyerID && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memAttempts) Record(_ context.Context, rec *models.AttemptRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *rec)
	return nil
}

type memChat struct {
	mu        sync.Mutex
	threads   map[string][]models.ChatMessage
	summaries map[string]models.ThreadSummary

	appendErr  error
	summaryErr error
}

func newMemChat() *memChat {
	return &memChat{
		threads:   map[string][]models.ChatMessage{},
		summaries: map[string]models.ThreadSummary{},
	}
}

func (m *memChat) AppendMessage(_ context.Context, threadID string, msg *models.ChatMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return "", m.appendErr
	}
	stored := *msg
	stored.ID = primitive.NewObjectID().Hex()
	m.threads[threadID] = append(m.threads[threadID], stored)
	return stored.ID, nil
}

func (m *memChat) RecentMessages(_ context.Context, threadID string, since int64) ([]models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ChatMessage
	for _, msg := range m.threads[threadID] {
		if msg.Timestamp >= since {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memChat) UpsertSummary(_ context.Context, threadID string, sum *models.ThreadSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.summaryErr != nil {
		return m.summaryErr
	}
	m.summaries[threadID] = *sum
	return nil
}

func (m *memChat) messageCount(threadID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.threads[threadID])
}

type staticNames struct{}

func (staticNames) Resolve(_ context.Context, userID string) string { return "name-" + userID }

type fixture struct {
	notifier *Notifier
	users    *memUsers
	products *memProducts
	attempts *memAttempts
	chat     *memChat

	buyerID   string
	sellerID  string
	productID string
	now       time.Time
}

func newFixture(stock int) *fixture {
	buyer := primitive.NewObjectID()
	seller := primitive.NewObjectID()
	product := primitive.NewObjectID()

	f := &fixture{
		users: &memUsers{users: map[string]*models.User{
			buyer.Hex():  {ID: buyer, Name: "Ben Buyer", Role: models.RoleCustomer},
			seller.Hex(): {ID: seller, Name: "Sara Seller", Role: models.RoleSeller},
		}},
		products: &memProducts{products: map[string]*models.Product{
			product.Hex(): {ID: product, Title: "Desk Lamp", Price: 12.5, Stock: stock, Seller: seller},
		}},
		attempts:  &memAttempts{},
		chat:      newMemChat(),
		buyerID:   buyer.Hex(),
		sellerID:  seller.Hex(),
		productID: product.Hex(),
		now:       time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.notifier = &Notifier{
		Users:    f.users,
		Products: f.products,
		Attempts: f.attempts,
		Chat:     f.chat,
		Names:    staticNames{},
		Now:      func() time.Time { return f.now },
	}
	return f
}

func (f *fixture) threadID() string {
	return chat.ThreadID(f.buyerID, f.sellerID)
}

func line(productID string, qty int) models.AttemptLine {
	return models.AttemptLine{ProductID: productID, Quantity: qty}
}

func TestCheckoutSuccess(t *testing.T) {
	f := newFixture(5)

	res, err := f.notifier.Checkout(context.Background(), f.buyerID, []models.AttemptLine{line(f.productID, 2)}, "")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if len(res.NotifiedSellers) != 1 || len(res.FailedItems) != 0 {
		t.Fatalf("got %d notified, %d failed", len(res.NotifiedSellers), len(res.FailedItems))
	}
	if res.AttemptID == "" {
		t.Error("expected a generated attempt id")
	}

	ns := res.NotifiedSellers[0]
	if ns.SellerID != f.sellerID || ns.Product != "Desk Lamp" || ns.Quantity != 2 || ns.Price != 12.5 {
		t.Errorf("unexpected notified seller: %+v", ns)
	}
	if got := f.products.stock(f.productID); got != 3 {
		t.Errorf("stock = %d, want 3", got)
	}
	if got := f.chat.messageCount(f.threadID()); got != 1 {
		t.Errorf("messages = %d, want 1", got)
	}

	msg := f.chat.threads[f.threadID()][0]
	if msg.Type != models.MessageTypeCheckout || msg.SenderID != f.buyerID || msg.ReceiverID != f.sellerID {
		t.Errorf("unexpected message: %+v", msg)
	}

	sum, ok := f.chat.summaries[f.threadID()]
	if !ok {
		t.Fatal("expected a thread summary")
	}
	if sum.BuyerID != f.buyerID || sum.SellerID != f.sellerID || sum.Quantity != 2 {
		t.Errorf("unexpected summary: %+v", sum)
	}
}

func TestCheckoutRejectsBadRequests(t *testing.T) {
	f := newFixture(5)
	ctx := context.Background()

	if _, err := f.notifier.Checkout(ctx, f.buyerID, nil, ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty cart: got %v, want ErrInvalidInput", err)
	}
	if _, err := f.notifier.Checkout(ctx, "", []models.AttemptLine{line(f.productID, 1)}, ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty buyer: got %v, want ErrInvalidInput", err)
	}
	ghost := primitive.NewObjectID().Hex()
	if _, err := f.notifier.Checkout(ctx, ghost, []models.AttemptLine{line(f.productID, 1)}, ""); !errors.Is(err, ErrBuyerNotFound) {
		t.Errorf("unknown buyer: got %v, want ErrBuyerNotFound", err)
	}
}

func TestCheckoutDuplicateAttemptID(t *testing.T) {
	f := newFixture(5)
	ctx := context.Background()
	items := []models.AttemptLine{line(f.productID, 2)}

	if _, err := f.notifier.Checkout(ctx, f.buyerID, items, "attempt-1"); err != nil {
		t.Fatalf("first call: %v", err)
	}

	_, err := f.notifier.Checkout(ctx, f.buyerID, items, "attempt-1")
	if !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("second call: got %v, want ErrDuplicateRequest", err)
	}

	// Exactly one decrement and one message despite the retry.
	if got := f.products.stock(f.productID); got != 3 {
		t.Errorf("stock = %d, want 3", got)
	}
	if got := f.chat.messageCount(f.threadID()); got != 1 {
		t.Errorf("messages = %d, want 1", got)
	}
}

func TestCheckoutRateLimited(t *testing.T) {
	f := newFixture(5)
	ctx := context.Background()

	for i := 0; i < attemptLimit; i++ {
		f.attempts.Record(ctx, &models.AttemptRecord{
			BuyerID:   f.buyerID,
			AttemptID: primitive.NewObjectID().Hex(),
			CreatedAt: f.now.Add(-time.Minute),
		})
	}

	_, err := f.notifier.Checkout(ctx, f.buyerID, []models.AttemptLine{line(f.productID, 1)}, "")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("got %v, want ErrRateLimited", err)
	}
	if got := f.products.stock(f.productID); got != 5 {
		t.Errorf("stock = %d, want 5 (no side effects)", got)
	}
}

func TestCheckoutOldAttemptsDoNotCount(t *testing.T) {
	f := newFixture(5)
	ctx := context.Background()

	for i := 0; i < attemptLimit; i++ {
		f.attempts.Record(ctx, &models.AttemptRecord{
			BuyerID:   f.buyerID,
			AttemptID: primitive.NewObjectID().Hex(),
			CreatedAt: f.now.Add(-attemptWindow - time.Minute),
		})
	}

	if _, err := f.notifier.Checkout(ctx, f.buyerID, []models.AttemptLine{line(f.productID, 1)}, ""); err != nil {
		t.Fatalf("attempts outside the window should not rate-limit: %v", err)
	}
}

func TestCheckoutIntraBatchDedup(t *testing.T) {
	f := newFixture(5)

	res, err := f.notifier.Checkout(context.Background(), f.buyerID,
		[]models.AttemptLine{line(f.productID, 2), line(f.productID, 2)}, "")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if len(res.NotifiedSellers) != 1 || len(res.FailedItems) != 0 {
		t.Fatalf("got %d notified, %d failed; want 1, 0", len(res.NotifiedSellers), len(res.FailedItems))
	}
	if got := f.products.stock(f.productID); got != 3 {
		t.Errorf("stock = %d, want 3 (single reservation)", got)
	}
	if got := f.chat.messageCount(f.threadID()); got != 1 {
		t.Errorf("messages = %d, want 1", got)
	}
}

func TestCheckoutInsufficientStock(t *testing.T) {
	f := newFixture(2)

	res, err := f.notifier.Checkout(context.Background(), f.buyerID, []models.AttemptLine{line(f.productID, 3)}, "")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if len(res.FailedItems) != 1 {
		t.Fatalf("failed items = %d, want 1", len(res.FailedItems))
	}
	reason := res.FailedItems[0].Reason
	if !strings.Contains(reason, "insufficient stock") || !strings.Contains(reason, "available 2") {
		t.Errorf("unexpected reason: %q", reason)
	}
	if got := f.products.stock(f.productID); got != 2 {
		t.Errorf("stock = %d, want 2 (untouched)", got)
	}
}

func TestCheckoutInvalidIDDoesNotAbortBatch(t *testing.T) {
	f := newFixture(5)

	res, err := f.notifier.Checkout(context.Background(), f.buyerID,
		[]models.AttemptLine{line("not-an-id", 1), line(f.productID, 1)}, "")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if len(res.NotifiedSellers) != 1 {
		t.Errorf("notified = %d, want 1", len(res.NotifiedSellers))
	}
	if len(res.FailedItems) != 1 || res.FailedItems[0].Reason != "invalid product id" {
		t.Errorf("unexpected failed items: %+v", res.FailedItems)
	}
}

func TestCheckoutUnknownProduct(t *testing.T) {
	f := newFixture(5)

	res, err := f.notifier.Checkout(context.Background(), f.buyerID,
		[]models.AttemptLine{line(primitive.NewObjectID().Hex(), 1)}, "")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if len(res.FailedItems) != 1 || res.FailedItems[0].Reason != "product not found" {
		t.Errorf("unexpected failed items: %+v", res.FailedItems)
	}
}

func TestCheckoutDemotedSellerCompensates(t *testing.T) {
	f := newFixture(5)
	f.users.users[f.sellerID].Role = models.RoleCustomer

	res, err := f.notifier.Checkout(context.Background(), f.buyerID, []models.AttemptLine{line(f.productID, 2)}, "")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if len(res.FailedItems) != 1 || !strings.Contains(res.FailedItems[0].Reason, "seller") {
		t.Fatalf("unexpected failed items: %+v", res.FailedItems)
	}
	if got := f.products.stock(f.productID); got != 5 {
		t.Errorf("stock = %d, want 5 (reservation rolled back)", got)
	}
	if got := f.chat.messageCount(f.threadID()); got != 0 {
		t.Errorf("messages = %d, want 0", got)
	}
}

func TestCheckoutSemanticDuplicateWithinWindow(t *testing.T) {
	f := newFixture(5)
	ctx := context.Background()
	items := []models.AttemptLine{line(f.productID, 1)}

	if _, err := f.notifier.Checkout(ctx, f.buyerID, items, ""); err != nil {
		t.Fatalf("first call: %v", err)
	}

	// A different attempt id 10 seconds later is still a duplicate on the
	// thread and must roll its reservation back.
	f.now = f.now.Add(10 * time.Second)
	res, err := f.notifier.Checkout(ctx, f.buyerID, items, "")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}

	if len(res.FailedItems) != 1 || !strings.Contains(res.FailedItems[0].Reason, "duplicate") {
		t.Fatalf("unexpected failed items: %+v", res.FailedItems)
	}
	if got := f.products.stock(f.productID); got != 4 {
		t.Errorf("stock = %d, want 4 (only the first reservation held)", got)
	}
	if got := f.chat.messageCount(f.threadID()); got != 1 {
		t.Errorf("messages = %d, want 1 (first message persists)", got)
	}
}

func TestCheckoutOutsideDuplicateWindow(t *testing.T) {
	f := newFixture(5)
	ctx := context.Background()
	items := []models.AttemptLine{line(f.productID, 1)}

	if _, err := f.notifier.Checkout(ctx, f.buyerID, items, ""); err != nil {
		t.Fatalf("first call: %v", err)
	}

	f.now = f.now.Add(duplicateWindow + time.Second)
	res, err := f.notifier.Checkout(ctx, f.buyerID, items, "")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if len(res.NotifiedSellers) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := f.products.stock(f.productID); got != 3 {
		t.Errorf("stock = %d, want 3", got)
	}
}

func TestCheckoutChatWriteFailureKeepsReservation(t *testing.T) {
	f := newFixture(5)
	f.chat.appendErr = errors.New("rtdb unavailable")

	res, err := f.notifier.Checkout(context.Background(), f.buyerID, []models.AttemptLine{line(f.productID, 2)}, "")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if len(res.FailedItems) != 1 || !strings.Contains(res.FailedItems[0].Reason, "chat write failed") {
		t.Fatalf("unexpected failed items: %+v", res.FailedItems)
	}
	// Carried-over behavior: the reservation is not compensated on a
	// downstream chat write failure.
	if got := f.products.stock(f.productID); got != 3 {
		t.Errorf("stock = %d, want 3 (reservation kept)", got)
	}
}

func TestCheckoutSummaryFailureStillDelivers(t *testing.T) {
	f := newFixture(5)
	f.chat.summaryErr = errors.New("firestore unavailable")

	res, err := f.notifier.Checkout(context.Background(), f.buyerID, []models.AttemptLine{line(f.productID, 1)}, "")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if len(res.NotifiedSellers) != 1 || len(res.FailedItems) != 0 {
		t.Fatalf("summary failure must not block delivery: %+v", res)
	}
	if got := f.chat.messageCount(f.threadID()); got != 1 {
		t.Errorf("messages = %d, want 1", got)
	}
}

func TestCheckoutMultipleItemsIndependent(t *testing.T) {
	f := newFixture(5)

	second := primitive.NewObjectID()
	sellerOID, _ := primitive.ObjectIDFromHex(f.sellerID)
	f.products.mu.Lock()
	f.products.products[second.Hex()] = &models.Product{ID: second, Title: "Backpack", Price: 30, Stock: 1, Seller: sellerOID}
	f.products.mu.Unlock()

	res, err := f.notifier.Checkout(context.Background(), f.buyerID,
		[]models.AttemptLine{line(f.productID, 1), line(second.Hex(), 2)}, "")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if len(res.NotifiedSellers) != 1 || len(res.FailedItems) != 1 {
		t.Fatalf("got %d notified, %d failed; want 1, 1", len(res.NotifiedSellers), len(res.FailedItems))
	}
	if got := f.products.stock(f.productID); got != 4 {
		t.Errorf("first product stock = %d, want 4", got)
	}
	if got := f.products.stock(second.Hex()); got != 1 {
		t.Errorf("second product stock = %d, want 1", got)
	}
}
