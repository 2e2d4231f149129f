package model

import (
	"time"

	"github.com/google/uuid"
)

type ConversationSummary struct {
	ConversationId uuid.UUID `gorm:"type:uuid;primaryKey"`
	Summary        string    `gorm:"type:text;not null;default:''"`
	// Watermark = seq of the last message folded into Summary. NULL until
	// the first fold; the conditional update in the repository keeps it
	// strictly increasing under concurrent summarization passes.
	Watermark *int64    `gorm:"column:summarized_through_seq"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (ConversationSummary) TableName() string {
	return "conversation_summaries"
}
