package assembler

import (
	"context"
	"fmt"
	"testing"

	"neuroheart-chat-be/internal/constant"
	"neuroheart-chat-be/internal/entity"
	"neuroheart-chat-be/internal/model"
	"neuroheart-chat-be/internal/pkg/logger"
	"neuroheart-chat-be/internal/repository/unitofwork"
	"neuroheart-chat-be/pkg/retrieval"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type stubRetriever struct {
	snippets []retrieval.Snippet
	err      error
}

func (s *stubRetriever) Search(ctx context.Context, userId uuid.UUID, query string, k int) ([]retrieval.Snippet, error) {
	return s.snippets, s.err
}

func newTestFactory(t *testing.T) unitofwork.RepositoryFactory {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Conversation{},
		&model.ChatMessage{},
		&model.ConversationSummary{},
	))
	return unitofwork.NewRepositoryFactory(db)
}

func seedConversation(t *testing.T, factory unitofwork.RepositoryFactory, userId uuid.UUID, messageCount int) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	uow := factory.NewUnitOfWork(ctx)

	convo := &entity.Conversation{UserId: userId, Title: "test"}
	require.NoError(t, uow.ConversationRepository().Create(ctx, convo))

	for i := 0; i < messageCount; i++ {
		role := constant.ChatMessageRoleUser
		if i%2 == 1 {
			role = constant.ChatMessageRoleAssistant
		}
		msg := &entity.ChatMessage{
			ConversationId: convo.Id,
			Role:           role,
			Content:        fmt.Sprintf("message %d", i+1),
		}
		require.NoError(t, uow.ChatMessageRepository().Append(ctx, msg))
	}
	return convo.Id
}

func TestAssembleIncludesSummaryRecentAndSnippets(t *testing.T) {
	ctx := context.Background()
	factory := newTestFactory(t)
	userId := uuid.New()
	convoId := seedConversation(t, factory, userId, 5)

	uow := factory.NewUnitOfWork(ctx)
	require.NoError(t, uow.ConversationSummaryRepository().Apply(ctx, convoId, "earlier discussion about sleep", 2))

	snippets := []retrieval.Snippet{
		{Text: "HRV basics", Kind: entity.KnowledgeChunkKindKnowledge},
	}
	a := NewAssembler(factory, &stubRetriever{snippets: snippets},
		Config{RecentWindow: 20, CharBudget: 400_000, RetrievalK: 3}, logger.NewNopLogger())

	bundle, err := a.Assemble(ctx, convoId, userId, "how did I sleep")
	require.NoError(t, err)

	assert.Equal(t, "earlier discussion about sleep", bundle.Summary)
	require.Len(t, bundle.Recent, 3) // seqs 3, 4, 5: everything past the watermark
	assert.Equal(t, int64(3), bundle.Recent[0].Seq)
	assert.Equal(t, int64(5), bundle.Recent[2].Seq)
	assert.Equal(t, snippets, bundle.Snippets)
}

func TestAssembleRetrievalFailureDegradesToEmpty(t *testing.T) {
	ctx := context.Background()
	factory := newTestFactory(t)
	userId := uuid.New()
	convoId := seedConversation(t, factory, userId, 3)

	a := NewAssembler(factory, &stubRetriever{err: fmt.Errorf("vector store down")},
		Config{RecentWindow: 20, CharBudget: 400_000, RetrievalK: 3}, logger.NewNopLogger())

	bundle, err := a.Assemble(ctx, convoId, userId, "anything")
	require.NoError(t, err)
	assert.Empty(t, bundle.Snippets)
	assert.Len(t, bundle.Recent, 3)
}

func TestAssembleRecentWindowKeepsNewest(t *testing.T) {
	ctx := context.Background()
	factory := newTestFactory(t)
	userId := uuid.New()
	convoId := seedConversation(t, factory, userId, 10)

	a := NewAssembler(factory, &stubRetriever{},
		Config{RecentWindow: 4, CharBudget: 400_000, RetrievalK: 3}, logger.NewNopLogger())

	bundle, err := a.Assemble(ctx, convoId, userId, "anything")
	require.NoError(t, err)
	require.Len(t, bundle.Recent, 4)
	assert.Equal(t, int64(7), bundle.Recent[0].Seq)
	assert.Equal(t, int64(10), bundle.Recent[3].Seq)
}

func TestTrimToBudget(t *testing.T) {
	msg := func(seq int64, content string) *entity.ChatMessage {
		return &entity.ChatMessage{Seq: seq, Content: content}
	}

	t.Run("drops snippets before recent turns", func(t *testing.T) {
		b := &Bundle{
			Summary: "sum",
			Recent:  []*entity.ChatMessage{msg(1, "aaaa"), msg(2, "bbbb")},
			Snippets: []retrieval.Snippet{
				{Text: "snippet one"},
				{Text: "snippet two"},
			},
		}
		trimToBudget(b, len("sum")+8+len("snippet one"))
		assert.Len(t, b.Snippets, 1)
		assert.Len(t, b.Recent, 2)
	})

	t.Run("drops oldest recent turns next", func(t *testing.T) {
		b := &Bundle{
			Summary: "sum",
			Recent:  []*entity.ChatMessage{msg(1, "aaaa"), msg(2, "bbbb"), msg(3, "cccc")},
		}
		trimToBudget(b, len("sum")+8)
		require.Len(t, b.Recent, 2)
		assert.Equal(t, int64(2), b.Recent[0].Seq)
		assert.Equal(t, int64(3), b.Recent[1].Seq)
	})

	t.Run("never drops summary or newest message", func(t *testing.T) {
		b := &Bundle{
			Summary:  "a very long summary that blows the budget on its own",
			Recent:   []*entity.ChatMessage{msg(1, "old"), msg(2, "the newest message")},
			Snippets: []retrieval.Snippet{{Text: "snippet"}},
		}
		trimToBudget(b, 10)
		assert.NotEmpty(t, b.Summary)
		require.Len(t, b.Recent, 1)
		assert.Equal(t, int64(2), b.Recent[0].Seq)
		assert.Empty(t, b.Snippets)
	})

	t.Run("zero budget disables trimming", func(t *testing.T) {
		b := &Bundle{
			Summary:  "sum",
			Recent:   []*entity.ChatMessage{msg(1, "aaaa")},
			Snippets: []retrieval.Snippet{{Text: "snippet"}},
		}
		trimToBudget(b, 0)
		assert.Len(t, b.Snippets, 1)
	})
}
