package contract

import (
	"context"

	"neuroheart-chat-be/internal/entity"

	"github.com/google/uuid"
)

type ConversationSummaryRepository interface {
	// Get returns the summary row, or an empty default (nil watermark)
	// when the conversation has never been summarized. Never an error for
	// a missing row.
	Get(ctx context.Context, conversationId uuid.UUID) (*entity.ConversationSummary, error)

	// Apply stores a new summary iff watermark strictly advances, as a
	// single conditional update. Returns apperr.ErrStaleWatermark when a
	// newer watermark is already stored.
	Apply(ctx context.Context, conversationId uuid.UUID, summary string, watermark int64) error

	DeleteByConversationId(ctx context.Context, conversationId uuid.UUID) error
}
