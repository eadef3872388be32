// Package chat holds the thread read path (listing, unread aggregation,
// mark-read) and the Firebase-backed message/summary store the checkout
// pipeline writes through.
package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"campusmarket/models"
)

var ErrForbidden = errors.New("not a participant of this thread")

// Store is the full chat backend surface. FirebaseStore is the production
// implementation; tests inject fakes.
type Store interface {
	AppendMessage(ctx context.Context, threadID string, msg *models.ChatMessage) (string, error)
	RecentMessages(ctx context.Context, threadID string, since int64) ([]models.ChatMessage, error)
	UpsertSummary(ctx context.Context, threadID string, sum *models.ThreadSummary) error
	AllThreads(ctx context.Context) (map[string][]models.ChatMessage, error)
	ThreadMessages(ctx context.Context, threadID string) ([]models.ChatMessage, error)
	MarkRead(ctx context.Context, threadID string, messageIDs []string, at int64) error
}

// NameResolver mirrors checkout.NameResolver; the cache satisfies both.
type NameResolver interface {
	Resolve(ctx context.Context, userID string) string
	ResolveMany(ctx context.Context, userIDs []string) map[string]string
}

// ThreadView is one row of the thread list returned to the client.
type ThreadView struct {
	ThreadID    string  `json:"threadId"`
	OtherUserID string  `json:"otherUserId"`
	LastMessage string  `json:"lastMessage"`
	Timestamp   int64   `json:"timestamp"`
	Unread      int     `json:"unread"`
	Empty       bool    `json:"empty,omitempty"`
	LastType    string  `json:"lastType,omitempty"`
	LastPrice   float64 `json:"lastPrice,omitempty"`
}

type ThreadList struct {
	Threads []ThreadView      `json:"threads"`
	Users   map[string]string `json:"users"`
}

type Service struct {
	Store Store
	Names NameResolver

	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ListThreads scans all threads and returns the ones userID participates in,
// most recent first, with unread counts and counterpart display names.
// Threads with no messages are still returned, flagged empty, stamped with
// the current time so they sort to the top (intentional-looking quirk kept
// from the original behavior: new conversations float up).
func (s *Service) ListThreads(ctx context.Context, userID string) (*ThreadList, error) {
	all, err := s.Store.AllThreads(ctx)
	if err != nil {
		return nil, err
	}

	out := &ThreadList{Threads: []ThreadView{}, Users: map[string]string{}}
	var counterparts []string

	for threadID, msgs := range all {
		if !threadHas(threadID, userID) {
			continue
		}

		view := ThreadView{ThreadID: threadID, OtherUserID: otherHalf(threadID, userID)}

		if len(msgs) == 0 {
			view.Empty = true
			view.Timestamp = s.now().UnixMilli()
		} else {
			var last models.ChatMessage
			for _, m := range msgs {
				if m.Timestamp >= last.Timestamp {
					last = m
				}
				if m.ReceiverID == userID && m.SenderID != userID && !m.Read {
					view.Unread++
				}
			}
			view.LastMessage = last.Content
			view.Timestamp = last.Timestamp
			view.LastType = last.Type
			view.LastPrice = last.Price
		}

		counterparts = append(counterparts, view.OtherUserID)
		out.Threads = append(out.Threads, view)
	}

	sort.Slice(out.Threads, func(i, j int) bool {
		return out.Threads[i].Timestamp > out.Threads[j].Timestamp
	})

	if len(counterparts) > 0 {
		out.Users = s.Names.ResolveMany(ctx, counterparts)
	}
	return out, nil
}

// ThreadMessages returns a thread's log ascending by timestamp. The
// requester must be one of the two participants; messages that name neither
// the requester as sender nor as receiver are dropped from the response.
func (s *Service) ThreadMessages(ctx context.Context, threadID, requesterID string) ([]models.ChatMessage, error) {
	if !threadHas(threadID, requesterID) {
		return nil, ErrForbidden
	}

	msgs, err := s.Store.ThreadMessages(ctx, threadID)
	if err != nil {
		return nil, err
	}

	filtered := make([]models.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.SenderID == requesterID || m.ReceiverID == requesterID {
			filtered = append(filtered, m)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Timestamp < filtered[j].Timestamp
	})
	return filtered, nil
}

// MarkRead flags the given messages read in a single batched update. Not
// transactional across ids; a store failure can leave it partially applied
// and surfaces as one error.
func (s *Service) MarkRead(ctx context.Context, threadID string, messageIDs []string, requesterID string) error {
	if !threadHas(threadID, requesterID) {
		return ErrForbidden
	}
	if len(messageIDs) == 0 {
		return nil
	}
	return s.Store.MarkRead(ctx, threadID, messageIDs, s.now().UnixMilli())
}

// UnreadCount aggregates unread messages addressed to userID across all of
// their threads.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	all, err := s.Store.AllThreads(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for threadID, msgs := range all {
		if !threadHas(threadID, userID) {
			continue
		}
		for _, m := range msgs {
			if m.ReceiverID == userID && m.SenderID != userID && !m.Read {
				total++
			}
		}
	}
	return total, nil
}

func otherHalf(threadID, userID string) string {
	parts := strings.SplitN(threadID, "_", 2)
	if len(parts) != 2 {
		return ""
	}
	if parts[0] == userID {
		return parts[1]
	}
	return parts[0]
}
