package summarizer

import (
	"context"
	"fmt"
	"testing"

	"neuroheart-chat-be/internal/constant"
	"neuroheart-chat-be/internal/entity"
	"neuroheart-chat-be/internal/model"
	"neuroheart-chat-be/internal/pkg/apperr"
	"neuroheart-chat-be/internal/pkg/logger"
	"neuroheart-chat-be/internal/repository/unitofwork"
	"neuroheart-chat-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type stubLLM struct {
	reply      string
	err        error
	calls      int
	lastPrompt string
	onChat     func()
}

func (s *stubLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	s.calls++
	if len(history) > 0 {
		s.lastPrompt = history[len(history)-1].Content
	}
	if s.onChat != nil {
		s.onChat()
	}
	return s.reply, s.err
}

func (s *stubLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return s.Chat(ctx, []llm.Message{{Role: constant.ChatMessageRoleUser, Content: prompt}}, options...)
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

func seedMessages(t *testing.T, factory unitofwork.RepositoryFactory, convoId uuid.UUID, count int) {
	t.Helper()
	ctx := context.Background()
	uow := factory.NewUnitOfWork(ctx)
	for i := 0; i < count; i++ {
		role := constant.ChatMessageRoleUser
		if i%2 == 1 {
			role = constant.ChatMessageRoleAssistant
		}
		msg := &entity.ChatMessage{
			ConversationId: convoId,
			Role:           role,
			Content:        fmt.Sprintf("turn %d", i+1),
		}
		require.NoError(t, uow.ChatMessageRepository().Append(ctx, msg))
	}
}

func newConversation(t *testing.T, factory unitofwork.RepositoryFactory) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	convo := &entity.Conversation{UserId: uuid.New(), Title: "test"}
	require.NoError(t, factory.NewUnitOfWork(ctx).ConversationRepository().Create(ctx, convo))
	return convo.Id
}

func watermarkOf(t *testing.T, factory unitofwork.RepositoryFactory, convoId uuid.UUID) *entity.ConversationSummary {
	t.Helper()
	ctx := context.Background()
	summary, err := factory.NewUnitOfWork(ctx).ConversationSummaryRepository().Get(ctx, convoId)
	require.NoError(t, err)
	return summary
}

func TestMaybeSummarizeBelowThresholdIsNoop(t *testing.T) {
	factory := newTestFactory(t)
	convoId := newConversation(t, factory)
	seedMessages(t, factory, convoId, 3)

	chatModel := &stubLLM{reply: "should not be called"}
	s := NewSummarizer(factory, chatModel, Config{AfterMessages: 8, AfterChars: 16_000}, logger.NewNopLogger())

	advanced, err := s.MaybeSummarize(context.Background(), convoId)
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Zero(t, chatModel.calls)
	assert.Nil(t, watermarkOf(t, factory, convoId).Watermark)
}

func TestMaybeSummarizeFoldsAtMessageThreshold(t *testing.T) {
	factory := newTestFactory(t)
	convoId := newConversation(t, factory)
	seedMessages(t, factory, convoId, 8)

	chatModel := &stubLLM{reply: "folded summary"}
	s := NewSummarizer(factory, chatModel, Config{AfterMessages: 8, AfterChars: 16_000}, logger.NewNopLogger())

	advanced, err := s.MaybeSummarize(context.Background(), convoId)
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, 1, chatModel.calls)

	summary := watermarkOf(t, factory, convoId)
	assert.Equal(t, "folded summary", summary.Summary)
	require.NotNil(t, summary.Watermark)
	assert.Equal(t, int64(8), *summary.Watermark)
}

func TestMaybeSummarizeFoldsAtCharThreshold(t *testing.T) {
	factory := newTestFactory(t)
	convoId := newConversation(t, factory)

	ctx := context.Background()
	uow := factory.NewUnitOfWork(ctx)
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'x'
	}
	for i := 0; i < 2; i++ {
		msg := &entity.ChatMessage{
			ConversationId: convoId,
			Role:           constant.ChatMessageRoleUser,
			Content:        string(long),
		}
		require.NoError(t, uow.ChatMessageRepository().Append(ctx, msg))
	}

	chatModel := &stubLLM{reply: "folded"}
	s := NewSummarizer(factory, chatModel, Config{AfterMessages: 100, AfterChars: 1000}, logger.NewNopLogger())

	advanced, err := s.MaybeSummarize(ctx, convoId)
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, 1, chatModel.calls)
	require.NotNil(t, watermarkOf(t, factory, convoId).Watermark)
}

func TestMaybeSummarizeIsIncremental(t *testing.T) {
	factory := newTestFactory(t)
	convoId := newConversation(t, factory)
	seedMessages(t, factory, convoId, 8)

	chatModel := &stubLLM{reply: "first fold"}
	s := NewSummarizer(factory, chatModel, Config{AfterMessages: 8, AfterChars: 16_000}, logger.NewNopLogger())
	_, err := s.MaybeSummarize(context.Background(), convoId)
	require.NoError(t, err)

	seedMessages(t, factory, convoId, 8)
	chatModel.reply = "second fold"
	_, err = s.MaybeSummarize(context.Background(), convoId)
	require.NoError(t, err)

	summary := watermarkOf(t, factory, convoId)
	assert.Equal(t, "second fold", summary.Summary)
	require.NotNil(t, summary.Watermark)
	assert.Equal(t, int64(16), *summary.Watermark)

	// The second fold sees the first one's output, not the raw turns
	// before the watermark.
	assert.Contains(t, chatModel.lastPrompt, "first fold")
	assert.NotContains(t, chatModel.lastPrompt, "turn 1\n")
	assert.Contains(t, chatModel.lastPrompt, "turn 16")
}

func TestMaybeSummarizeRetainRecent(t *testing.T) {
	factory := newTestFactory(t)
	convoId := newConversation(t, factory)
	seedMessages(t, factory, convoId, 10)

	chatModel := &stubLLM{reply: "partial fold"}
	s := NewSummarizer(factory, chatModel, Config{AfterMessages: 8, AfterChars: 16_000, RetainRecent: 2}, logger.NewNopLogger())

	advanced, err := s.MaybeSummarize(context.Background(), convoId)
	require.NoError(t, err)
	assert.True(t, advanced)

	summary := watermarkOf(t, factory, convoId)
	require.NotNil(t, summary.Watermark)
	assert.Equal(t, int64(8), *summary.Watermark)
}

func TestMaybeSummarizeLLMFailureLeavesSummaryUntouched(t *testing.T) {
	factory := newTestFactory(t)
	convoId := newConversation(t, factory)
	seedMessages(t, factory, convoId, 8)

	chatModel := &stubLLM{err: fmt.Errorf("model offline")}
	s := NewSummarizer(factory, chatModel, Config{AfterMessages: 8, AfterChars: 16_000}, logger.NewNopLogger())

	advanced, err := s.MaybeSummarize(context.Background(), convoId)
	require.Error(t, err)
	assert.False(t, advanced)
	assert.True(t, apperr.IsUpstream(err))
	assert.Nil(t, watermarkOf(t, factory, convoId).Watermark)
}

func TestMaybeSummarizeStaleWatermarkIsSilent(t *testing.T) {
	factory := newTestFactory(t)
	convoId := newConversation(t, factory)
	seedMessages(t, factory, convoId, 8)

	// Simulate a concurrent fold landing between this pass's read and its
	// write: while the model call is in flight, another pass advances the
	// watermark past ours.
	ctx := context.Background()
	chatModel := &stubLLM{reply: "late fold"}
	chatModel.onChat = func() {
		require.NoError(t, factory.NewUnitOfWork(ctx).ConversationSummaryRepository().Apply(ctx, convoId, "newer summary", 12))
	}
	s := NewSummarizer(factory, chatModel, Config{AfterMessages: 1, AfterChars: 16_000}, logger.NewNopLogger())

	advanced, err := s.MaybeSummarize(ctx, convoId)
	require.NoError(t, err)
	assert.False(t, advanced)

	summary := watermarkOf(t, factory, convoId)
	assert.Equal(t, "newer summary", summary.Summary)
	require.NotNil(t, summary.Watermark)
	assert.Equal(t, int64(12), *summary.Watermark)
}
