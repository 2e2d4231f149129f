package integration

import (
	"context"
	"log"
	"os"
	"testing"

	"neuroheart-chat-be/internal/constant"
	"neuroheart-chat-be/internal/entity"
	"neuroheart-chat-be/internal/repository/specification"
	"neuroheart-chat-be/internal/repository/unitofwork"
	"neuroheart-chat-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
)

func TestGormConnection(t *testing.T) {
	// Load .env from root
	err := godotenv.Load("../../.env")
	if err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	// Verify Wiring
	uowFactory := unitofwork.NewRepositoryFactory(gormDB)
	uow := uowFactory.NewUnitOfWork(context.Background())

	assert.NotNil(t, uow.ConversationRepository())
	assert.NotNil(t, uow.ChatMessageRepository())
	assert.NotNil(t, uow.ConversationSummaryRepository())
	assert.NotNil(t, uow.KnowledgeChunkRepository())

	// Basic Ping
	sqlDB, _ := gormDB.DB()
	err = sqlDB.Ping()
	assert.NoError(t, err)
	t.Log("Successfully connected to DB and initialized UnitOfWork Factory")

	// Verify Data Access (implies columns exist)
	t.Run("Check Conversation Repository", func(t *testing.T) {
		count, err := uow.ConversationRepository().Count(context.Background())
		assert.NoError(t, err)
		t.Logf("Conversation count: %d", count)
	})

	t.Run("Check Knowledge Chunk Repository", func(t *testing.T) {
		// Count implies the table and vector column exist
		count, err := uow.KnowledgeChunkRepository().Count(context.Background())
		assert.NoError(t, err)
		t.Logf("KnowledgeChunk count: %d", count)
	})

	t.Run("Check Transactional Chat Turn", func(t *testing.T) {
		ctx := context.Background()
		userId := uuid.New()

		convo := &entity.Conversation{
			UserId: userId,
			Title:  "integration-" + uuid.New().String(),
		}
		err := uow.ConversationRepository().Create(ctx, convo)
		assert.NoError(t, err)
		defer func() {
			_ = uow.ChatMessageRepository().DeleteByConversationIdUnscoped(ctx, convo.Id)
			_ = uow.ConversationSummaryRepository().DeleteByConversationId(ctx, convo.Id)
			_ = uow.ConversationRepository().DeleteUnscoped(ctx, convo.Id)
		}()

		// Transaction Test
		err = uow.Begin(ctx)
		assert.NoError(t, err)
		defer uow.Rollback()

		err = uow.ChatMessageRepository().Append(ctx, &entity.ChatMessage{
			ConversationId: convo.Id,
			AuthorId:       &userId,
			Role:           constant.ChatMessageRoleUser,
			Content:        "integration hello",
		})
		assert.NoError(t, err)

		err = uow.ChatMessageRepository().Append(ctx, &entity.ChatMessage{
			ConversationId: convo.Id,
			Role:           constant.ChatMessageRoleAssistant,
			Content:        "integration reply",
			Model:          "integration-model",
		})
		assert.NoError(t, err)

		err = uow.ConversationSummaryRepository().Apply(ctx, convo.Id, "integration summary", 2)
		assert.NoError(t, err)

		err = uow.Commit()
		assert.NoError(t, err)

		messages, err := uow.ChatMessageRepository().FindAll(ctx,
			specification.ByConversationID{ConversationID: convo.Id},
			specification.OrderBy{Field: "seq"},
		)
		assert.NoError(t, err)
		assert.Len(t, messages, 2)
		if len(messages) == 2 {
			assert.Equal(t, int64(1), messages[0].Seq)
			assert.Equal(t, int64(2), messages[1].Seq)
		}

		t.Log("Successfully appended a chat turn and applied a summary in Transaction")
	})

	t.Run("Check Vector Similarity Search", func(t *testing.T) {
		ctx := context.Background()
		userId := uuid.New()

		// 768 dims matches the migration's vector column
		embedding := make([]float32, 768)
		embedding[0] = 1

		chunk := &entity.KnowledgeChunk{
			UserId:    &userId,
			Kind:      entity.KnowledgeChunkKindMemory,
			Source:    "integration-" + uuid.New().String(),
			Content:   "integration test memory chunk",
			Embedding: embedding,
		}
		err := uow.KnowledgeChunkRepository().Create(ctx, chunk)
		assert.NoError(t, err)
		defer func() {
			_ = uow.KnowledgeChunkRepository().Delete(ctx, chunk.Id)
		}()

		found, err := uow.KnowledgeChunkRepository().SearchSimilar(ctx, embedding, 5, userId, 0)
		assert.NoError(t, err)
		assert.NotEmpty(t, found)
		t.Logf("SearchSimilar returned %d chunks", len(found))
	})
}
