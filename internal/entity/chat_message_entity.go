package entity

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one turn in a conversation. Seq is assigned by the
// store at append time: strictly increasing and gap-free per
// conversation, consistent with creation order.
type ChatMessage struct {
	Id             uuid.UUID
	ConversationId uuid.UUID
	Seq            int64
	AuthorId       *uuid.UUID // nil for assistant/system turns
	Role           string
	Content        string
	Model          string                 // producing model, assistant turns only
	Metadata       map[string]interface{} // retrieval hits used, latency, etc.
	CreatedAt      time.Time
}
