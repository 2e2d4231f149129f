package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateConversationRequest struct {
	Title string `json:"title" validate:"max=200"`
}

type CreateConversationResponse struct {
	Id        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type GetAllConversationsResponse struct {
	Id         uuid.UUID  `json:"id"`
	Title      string     `json:"title"`
	IsArchived bool       `json:"is_archived"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at"`
}

// HistoryPage is the cursor for history listing. AfterSeq pages forward
// (catch-up), BeforeSeq pages backward (scroll-up); zero means unset.
type HistoryPage struct {
	AfterSeq  int64
	BeforeSeq int64
	Limit     int
}

type GetChatHistoryResponse struct {
	Seq       int64                  `json:"seq"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Model     string                 `json:"model,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type SendChatRequest struct {
	ConversationId uuid.UUID `json:"conversation_id" validate:"required"`
	Message        string    `json:"message" validate:"required,min=1,max=4000"`
	HrvRange       string    `json:"hrv_range,omitempty" validate:"omitempty,oneof=1d 7d 30d 6m"`
}

type SendChatResponseTurn struct {
	Seq       int64     `json:"seq"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type SendChatResponse struct {
	ConversationId uuid.UUID             `json:"conversation_id"`
	Sent           *SendChatResponseTurn `json:"sent"`
	Reply          *SendChatResponseTurn `json:"reply"`
	UsedContext    bool                  `json:"used_context"`
	HrvRange       string                `json:"hrv_range"`
	RagK           int                   `json:"rag_k"`
}

// TurnCompletedMessage rides the in-process bus from the chat service to
// the summarize consumer.
type TurnCompletedMessage struct {
	ConversationId uuid.UUID `json:"conversation_id"`
	UserId         uuid.UUID `json:"user_id"`
	LastSeq        int64     `json:"last_seq"`
}
