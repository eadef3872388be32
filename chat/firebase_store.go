package chat

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"firebase.google.com/go/v4/db"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"campusmarket/models"
)

const (
	messagesRoot      = "chats"
	summaryCollection = "chatThreads"
)

// FirebaseStore keeps the append-only message log in the Realtime Database
// under chats/{threadId}/{messageId} and the thread summaries in the
// Firestore collection chatThreads, one doc per thread.
type FirebaseStore struct {
	RTDB      *db.Client
	Firestore *firestore.Client
}

func NewFirebaseStore(rtdb *db.Client, fs *firestore.Client) *FirebaseStore {
	return &FirebaseStore{RTDB: rtdb, Firestore: fs}
}

func (s *FirebaseStore) threadRef(threadID string) *db.Ref {
	return s.RTDB.NewRef(messagesRoot + "/" + threadID)
}

// AppendMessage pushes msg onto the thread log and returns the generated
// message id. The log is never rewritten.
func (s *FirebaseStore) AppendMessage(ctx context.Context, threadID string, msg *models.ChatMessage) (string, error) {
	if s == nil || s.RTDB == nil {
		return "", errors.New("chat: rtdb client is nil")
	}
	if threadID == "" {
		return "", errors.New("chat: threadID is empty")
	}

	ref, err := s.threadRef(threadID).Push(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("chat: push message: %w", err)
	}
	return ref.Key, nil
}

// RecentMessages returns the thread's messages with timestamp >= since.
// Threads are small enough to read whole; filtering happens here.
func (s *FirebaseStore) RecentMessages(ctx context.Context, threadID string, since int64) ([]models.ChatMessage, error) {
	msgs, err := s.ThreadMessages(ctx, threadID)
	if err != nil {
		return nil, err
	}
	recent := msgs[:0]
	for _, m := range msgs {
		if m.Timestamp >= since {
			recent = append(recent, m)
		}
	}
	return recent, nil
}

func (s *FirebaseStore) ThreadMessages(ctx context.Context, threadID string) ([]models.ChatMessage, error) {
	if s == nil || s.RTDB == nil {
		return nil, errors.New("chat: rtdb client is nil")
	}

	var raw map[string]models.ChatMessage
	if err := s.threadRef(threadID).Get(ctx, &raw); err != nil {
		return nil, fmt.Errorf("chat: read thread %s: %w", threadID, err)
	}

	msgs := make([]models.ChatMessage, 0, len(raw))
	for id, m := range raw {
		m.ID = id
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// AllThreads reads the whole chats tree: threadId -> messages.
func (s *FirebaseStore) AllThreads(ctx context.Context) (map[string][]models.ChatMessage, error) {
	if s == nil || s.RTDB == nil {
		return nil, errors.New("chat: rtdb client is nil")
	}

	var raw map[string]map[string]models.ChatMessage
	if err := s.RTDB.NewRef(messagesRoot).Get(ctx, &raw); err != nil {
		return nil, fmt.Errorf("chat: read threads: %w", err)
	}

	out := make(map[string][]models.ChatMessage, len(raw))
	for threadID, byID := range raw {
		msgs := make([]models.ChatMessage, 0, len(byID))
		for id, m := range byID {
			m.ID = id
			msgs = append(msgs, m)
		}
		out[threadID] = msgs
	}
	return out, nil
}

// MarkRead applies read=true/readAt to all given message ids in one
// multi-path update on the thread ref.
func (s *FirebaseStore) MarkRead(ctx context.Context, threadID string, messageIDs []string, at int64) error {
	if s == nil || s.RTDB == nil {
		return errors.New("chat: rtdb client is nil")
	}
	if len(messageIDs) == 0 {
		return nil
	}

	updates := make(map[string]interface{}, len(messageIDs)*2)
	for _, id := range messageIDs {
		updates[id+"/read"] = true
		updates[id+"/readAt"] = at
	}
	if err := s.threadRef(threadID).Update(ctx, updates); err != nil {
		return fmt.Errorf("chat: mark read in %s: %w", threadID, err)
	}
	return nil
}

// UpsertSummary merge-writes the thread's summary doc. Later checkouts on
// the same thread overwrite summary fields; last write wins.
func (s *FirebaseStore) UpsertSummary(ctx context.Context, threadID string, sum *models.ThreadSummary) error {
	if s == nil || s.Firestore == nil {
		return errors.New("chat: firestore client is nil")
	}
	if sum == nil {
		return errors.New("chat: summary is nil")
	}

	// MergeAll needs map data, so the doc is written field by field.
	fields := map[string]interface{}{
		"users":         sum.Users,
		"lastMessage":   sum.LastMessage,
		"lastTimestamp": sum.LastTimestamp,
		"productId":     sum.ProductID,
		"buyerId":       sum.BuyerID,
		"sellerId":      sum.SellerID,
		"buyerName":     sum.BuyerName,
		"sellerName":    sum.SellerName,
		"quantity":      sum.Quantity,
		"price":         sum.Price,
	}
	_, err := s.Firestore.Collection(summaryCollection).Doc(threadID).Set(ctx, fields, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("chat: upsert summary %s: %w", threadID, err)
	}
	return nil
}

// Summary fetches a thread's summary doc, (nil, nil) when absent.
func (s *FirebaseStore) Summary(ctx context.Context, threadID string) (*models.ThreadSummary, error) {
	if s == nil || s.Firestore == nil {
		return nil, errors.New("chat: firestore client is nil")
	}

	snap, err := s.Firestore.Collection(summaryCollection).Doc(threadID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, err
	}

	var sum models.ThreadSummary
	if err := snap.DataTo(&sum); err != nil {
		return nil, fmt.Errorf("chat: decode summary %s: %w", threadID, err)
	}
	return &sum, nil
}
