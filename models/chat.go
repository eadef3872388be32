package models

// MessageTypeCheckout marks messages emitted by the checkout pipeline, as
// opposed to plain text messages typed by a user.
const (
	MessageTypeText     = "text"
	MessageTypeCheckout = "checkout"
)

// ChatMessage is one entry in the append-only per-thread log stored in the
// Realtime Database under chats/{threadId}/{messageId}. ID is the RTDB push
// key and is not part of the stored value.
type ChatMessage struct {
	ID         string  `json:"-"`
	SenderID   string  `json:"senderId"`
	ReceiverID string  `json:"receiverId"`
	Content    string  `json:"content"`
	Timestamp  int64   `json:"timestamp"` // unix millis
	Type       string  `json:"type"`
	Price      float64 `json:"price,omitempty"`
	ProductID  string  `json:"productId,omitempty"`
	Read       bool    `json:"read"`
	ReadAt     int64   `json:"readAt,omitempty"`
}

// ThreadSummary is the denormalized last-write-wins projection kept in
// Firestore at chatThreads/{threadId}. One doc per thread, merge-upserted on
// every checkout event.
type ThreadSummary struct {
	Users         []string `json:"users" firestore:"users"`
	LastMessage   string   `json:"lastMessage" firestore:"lastMessage"`
	LastTimestamp int64    `json:"lastTimestamp" firestore:"lastTimestamp"`
	ProductID     string   `json:"productId" firestore:"productId"`
	BuyerID       string   `json:"buyerId" firestore:"buyerId"`
	SellerID      string   `json:"sellerId" firestore:"sellerId"`
	BuyerName     string   `json:"buyerName" firestore:"buyerName"`
	SellerName    string   `json:"sellerName" firestore:"sellerName"`
	Quantity      int      `json:"quantity" firestore:"quantity"`
	Price         float64  `json:"price" firestore:"price"`
}
