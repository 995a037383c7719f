package chat

import (
	"time"

	"github.com/google/uuid"
)

// Message is one chat message as serialized into the ranked log by the
// producer and as persisted into the durable store. The message id is
// assigned by the producer and globally unique, which is what makes
// durable writes idempotent.
type Message struct {
	ID             string    `json:"id"`
	SenderID       string    `json:"senderId"`
	ReceiverID     string    `json:"receiverId"`
	Content        string    `json:"content"`
	ImageURL       string    `json:"imageUrl,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	Read           bool      `json:"read,omitempty"`
	ConversationID string    `json:"conversationId"`
}

// NewMessage builds a message with a fresh unique id and the current
// time, the shape producers write into the ranked log.
func NewMessage(senderID, receiverID, content, conversationID string) Message {
	return Message{
		ID:             uuid.NewString(),
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
		ConversationID: conversationID,
	}
}
