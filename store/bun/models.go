package bunstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/transseas/conveyor/chat"
	"github.com/transseas/conveyor/mail"
)

// ── Chat message model ────────────────────────────────────────────

type messageModel struct {
	bun.BaseModel `bun:"table:conveyor_messages"`

	ID             string    `bun:"id,pk"`
	SenderID       string    `bun:"sender_id,notnull"`
	ReceiverID     string    `bun:"receiver_id,notnull"`
	Content        string    `bun:"content,notnull"`
	ImageURL       string    `bun:"image_url"`
	Read           bool      `bun:"read,notnull,default:false"`
	ConversationID string    `bun:"conversation_id,notnull"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
}

func toMessageModel(m *chat.Message) *messageModel {
	return &messageModel{
		ID:             m.ID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Content:        m.Content,
		ImageURL:       m.ImageURL,
		Read:           m.Read,
		ConversationID: m.ConversationID,
		CreatedAt:      m.CreatedAt,
	}
}

func fromMessageModel(m *messageModel) *chat.Message {
	return &chat.Message{
		ID:             m.ID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Content:        m.Content,
		ImageURL:       m.ImageURL,
		Read:           m.Read,
		ConversationID: m.ConversationID,
		CreatedAt:      m.CreatedAt,
	}
}

// ── RFQ line item model ───────────────────────────────────────────

type itemModel struct {
	bun.BaseModel `bun:"table:conveyor_items"`

	ID             string    `bun:"id,pk"`
	Title          string    `bun:"title,notnull"`
	Code           string    `bun:"code,notnull"`
	Manufacturer   string    `bun:"manufacturer"`
	Quantity       int       `bun:"quantity,notnull,default:0"`
	Unit           string    `bun:"unit"`
	Price          float64   `bun:"price"`
	Specifications string    `bun:"specifications"`
	Status         string    `bun:"status"`
	RFQID          string    `bun:"rfq_id"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func fromItemModel(m *itemModel) mail.Item {
	return mail.Item{
		ID:             m.ID,
		Title:          m.Title,
		Code:           m.Code,
		Manufacturer:   m.Manufacturer,
		Quantity:       m.Quantity,
		Unit:           m.Unit,
		Price:          m.Price,
		Specifications: m.Specifications,
		Status:         m.Status,
	}
}
