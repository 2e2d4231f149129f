package unitofwork

import (
	"context"

	"neuroheart-chat-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ConversationRepository() contract.ConversationRepository
	ChatMessageRepository() contract.ChatMessageRepository
	ConversationSummaryRepository() contract.ConversationSummaryRepository
	KnowledgeChunkRepository() contract.KnowledgeChunkRepository
}
