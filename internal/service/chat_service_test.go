package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"neuroheart-chat-be/internal/constant"
	"neuroheart-chat-be/internal/dto"
	"neuroheart-chat-be/internal/model"
	"neuroheart-chat-be/internal/pkg/apperr"
	"neuroheart-chat-be/internal/pkg/logger"
	"neuroheart-chat-be/internal/repository/unitofwork"
	"neuroheart-chat-be/pkg/convo/assembler"
	"neuroheart-chat-be/pkg/llm"
	"neuroheart-chat-be/pkg/retrieval"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type stubLLM struct {
	reply string
	err   error
}

func (s *stubLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return s.reply, s.err
}

func (s *stubLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return s.reply, s.err
}

type stubRetriever struct {
	snippets []retrieval.Snippet
	err      error
}

func (s *stubRetriever) Search(ctx context.Context, userId uuid.UUID, query string, k int) ([]retrieval.Snippet, error) {
	return s.snippets, s.err
}

func newTestService(t *testing.T, provider llm.LLMProvider) (IChatService, unitofwork.RepositoryFactory, *gochannel.GoChannel) {
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

	factory := unitofwork.NewRepositoryFactory(db)
	nop := logger.NewNopLogger()
	contextAssembler := assembler.NewAssembler(factory, &stubRetriever{},
		assembler.Config{RecentWindow: 20, CharBudget: 400_000, RetrievalK: 3}, nop)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})

	svc := NewChatService(factory, provider, contextAssembler, nil, pubSub, nil, nil,
		ChatServiceConfig{LLMModel: "test-model", DefaultHrvRange: "7d", RetrievalK: 3}, nop)
	return svc, factory, pubSub
}

func TestSendChatPersistsBothTurns(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, &stubLLM{reply: "rest today, your HRV is low"})

	userId := uuid.New()
	created, err := svc.CreateConversation(ctx, userId, &dto.CreateConversationRequest{Title: "check-in"})
	require.NoError(t, err)

	res, err := svc.SendChat(ctx, userId, &dto.SendChatRequest{
		ConversationId: created.Id,
		Message:        "should I train today?",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.Sent.Seq)
	assert.Equal(t, int64(2), res.Reply.Seq)
	assert.Equal(t, constant.ChatMessageRoleAssistant, res.Reply.Role)
	assert.Equal(t, "rest today, your HRV is low", res.Reply.Content)
	assert.Equal(t, "7d", res.HrvRange)

	history, err := svc.GetChatHistory(ctx, userId, created.Id, dto.HistoryPage{})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, constant.ChatMessageRoleUser, history[0].Role)
	assert.Equal(t, "test-model", history[1].Model)
}

func TestSendChatLLMFailureKeepsUserMessage(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, &stubLLM{err: fmt.Errorf("model offline")})

	userId := uuid.New()
	created, err := svc.CreateConversation(ctx, userId, &dto.CreateConversationRequest{})
	require.NoError(t, err)

	_, err = svc.SendChat(ctx, userId, &dto.SendChatRequest{
		ConversationId: created.Id,
		Message:        "hello?",
	})
	require.Error(t, err)
	assert.True(t, apperr.IsUpstream(err))

	// The failed turn must not lose what the user typed.
	history, histErr := svc.GetChatHistory(ctx, userId, created.Id, dto.HistoryPage{})
	require.NoError(t, histErr)
	require.Len(t, history, 1)
	assert.Equal(t, constant.ChatMessageRoleUser, history[0].Role)
	assert.Equal(t, "hello?", history[0].Content)
}

func TestGetChatHistoryBackwardCursorReturnsNewestBeforeSeq(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, &stubLLM{reply: "ok"})

	userId := uuid.New()
	created, err := svc.CreateConversation(ctx, userId, &dto.CreateConversationRequest{})
	require.NoError(t, err)

	// Five turns leave seqs 1..10 behind.
	for i := 0; i < 5; i++ {
		_, err := svc.SendChat(ctx, userId, &dto.SendChatRequest{
			ConversationId: created.Id,
			Message:        fmt.Sprintf("message %d", i+1),
		})
		require.NoError(t, err)
	}

	// Scrolling up from seq 9 should surface the two messages just
	// before it, oldest first.
	page, err := svc.GetChatHistory(ctx, userId, created.Id, dto.HistoryPage{BeforeSeq: 9, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(7), page[0].Seq)
	assert.Equal(t, int64(8), page[1].Seq)

	// Forward cursor keeps chronological order with the limit applied.
	page, err = svc.GetChatHistory(ctx, userId, created.Id, dto.HistoryPage{AfterSeq: 4, Limit: 3})
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, int64(5), page[0].Seq)
	assert.Equal(t, int64(7), page[2].Seq)
}

func TestSendChatForeignConversationIsNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, &stubLLM{reply: "hi"})

	owner := uuid.New()
	created, err := svc.CreateConversation(ctx, owner, &dto.CreateConversationRequest{})
	require.NoError(t, err)

	intruder := uuid.New()
	_, err = svc.SendChat(ctx, intruder, &dto.SendChatRequest{
		ConversationId: created.Id,
		Message:        "let me in",
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSendChatArchivedConversationRejected(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, &stubLLM{reply: "hi"})

	userId := uuid.New()
	created, err := svc.CreateConversation(ctx, userId, &dto.CreateConversationRequest{})
	require.NoError(t, err)
	require.NoError(t, svc.ArchiveConversation(ctx, userId, created.Id))

	_, err = svc.SendChat(ctx, userId, &dto.SendChatRequest{
		ConversationId: created.Id,
		Message:        "anyone there?",
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// Unarchiving brings it back.
	require.NoError(t, svc.UnarchiveConversation(ctx, userId, created.Id))
	_, err = svc.SendChat(ctx, userId, &dto.SendChatRequest{
		ConversationId: created.Id,
		Message:        "anyone there?",
	})
	require.NoError(t, err)
}

func TestSendChatPublishesTurnCompleted(t *testing.T) {
	ctx := context.Background()
	svc, _, pubSub := newTestService(t, &stubLLM{reply: "hi"})

	messages, err := pubSub.Subscribe(ctx, constant.ChatTurnCompletedTopic)
	require.NoError(t, err)

	userId := uuid.New()
	created, err := svc.CreateConversation(ctx, userId, &dto.CreateConversationRequest{})
	require.NoError(t, err)

	_, err = svc.SendChat(ctx, userId, &dto.SendChatRequest{
		ConversationId: created.Id,
		Message:        "hello",
	})
	require.NoError(t, err)

	select {
	case msg := <-messages:
		var payload dto.TurnCompletedMessage
		require.NoError(t, json.Unmarshal(msg.Payload, &payload))
		assert.Equal(t, created.Id, payload.ConversationId)
		assert.Equal(t, userId, payload.UserId)
		assert.Equal(t, int64(2), payload.LastSeq)
		msg.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("expected a turn-completed event")
	}
}

func TestDeleteConversationPurgesEverything(t *testing.T) {
	ctx := context.Background()
	svc, factory, _ := newTestService(t, &stubLLM{reply: "hi"})

	userId := uuid.New()
	created, err := svc.CreateConversation(ctx, userId, &dto.CreateConversationRequest{})
	require.NoError(t, err)

	_, err = svc.SendChat(ctx, userId, &dto.SendChatRequest{
		ConversationId: created.Id,
		Message:        "hello",
	})
	require.NoError(t, err)

	uow := factory.NewUnitOfWork(ctx)
	require.NoError(t, uow.ConversationSummaryRepository().Apply(ctx, created.Id, "summary", 2))

	require.NoError(t, svc.DeleteConversation(ctx, userId, created.Id))

	_, err = svc.GetChatHistory(ctx, userId, created.Id, dto.HistoryPage{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	summary, err := uow.ConversationSummaryRepository().Get(ctx, created.Id)
	require.NoError(t, err)
	assert.Nil(t, summary.Watermark)

	listed, err := svc.GetAllConversations(ctx, userId, true)
	require.NoError(t, err)
	assert.Empty(t, listed)
}
