package contract

import (
	"context"

	"neuroheart-chat-be/internal/entity"
	"neuroheart-chat-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ChatMessageRepository interface {
	// Append assigns the next per-conversation sequence id and inserts the
	// message, bumping the conversation's updated_at in the same
	// transaction. Fails with apperr.ErrInvalidRole for roles outside the
	// closed set and apperr.ErrNotFound when the conversation is missing.
	Append(ctx context.Context, message *entity.ChatMessage) error
	DeleteByConversationIdUnscoped(ctx context.Context, conversationId uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatMessage, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
