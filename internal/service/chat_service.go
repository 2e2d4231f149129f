package service

import (
	"context"
	"encoding/json"
	"time"

	"neuroheart-chat-be/internal/constant"
	"neuroheart-chat-be/internal/dto"
	"neuroheart-chat-be/internal/entity"
	"neuroheart-chat-be/internal/pkg/apperr"
	"neuroheart-chat-be/internal/pkg/logger"
	"neuroheart-chat-be/internal/repository/specification"
	"neuroheart-chat-be/internal/repository/unitofwork"
	"neuroheart-chat-be/internal/websocket"
	"neuroheart-chat-be/pkg/convo/assembler"
	"neuroheart-chat-be/pkg/convo/prompt"
	"neuroheart-chat-be/pkg/events"
	"neuroheart-chat-be/pkg/health"
	"neuroheart-chat-be/pkg/llm"
	natspub "neuroheart-chat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// IChatService defines the chat service interface
type IChatService interface {
	CreateConversation(ctx context.Context, userId uuid.UUID, request *dto.CreateConversationRequest) (*dto.CreateConversationResponse, error)
	GetAllConversations(ctx context.Context, userId uuid.UUID, includeArchived bool) ([]*dto.GetAllConversationsResponse, error)
	ArchiveConversation(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) error
	UnarchiveConversation(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) error
	DeleteConversation(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) error
	GetChatHistory(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID, page dto.HistoryPage) ([]*dto.GetChatHistoryResponse, error)
	SendChat(ctx context.Context, userId uuid.UUID, request *dto.SendChatRequest) (*dto.SendChatResponse, error)
}

type ChatServiceConfig struct {
	LLMModel        string
	DefaultHrvRange string
	RetrievalK      int
}

type chatService struct {
	uowFactory    unitofwork.RepositoryFactory
	llmProvider   llm.LLMProvider
	assembler     *assembler.Assembler
	hrvClient     *health.HrvClient
	pubSub        *gochannel.GoChannel
	natsPublisher *natspub.Publisher // nil when NATS is not configured
	hub           *websocket.Hub     // nil in workers and tests
	cfg           ChatServiceConfig
	logger        logger.ILogger
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	llmProvider llm.LLMProvider,
	contextAssembler *assembler.Assembler,
	hrvClient *health.HrvClient,
	pubSub *gochannel.GoChannel,
	natsPublisher *natspub.Publisher,
	hub *websocket.Hub,
	cfg ChatServiceConfig,
	log logger.ILogger,
) IChatService {
	return &chatService{
		uowFactory:    uowFactory,
		llmProvider:   llmProvider,
		assembler:     contextAssembler,
		hrvClient:     hrvClient,
		pubSub:        pubSub,
		natsPublisher: natsPublisher,
		hub:           hub,
		cfg:           cfg,
		logger:        log,
	}
}

func (cs *chatService) CreateConversation(ctx context.Context, userId uuid.UUID, request *dto.CreateConversationRequest) (*dto.CreateConversationResponse, error) {
	title := request.Title
	if title == "" {
		title = "New Conversation"
	}

	convo := &entity.Conversation{
		UserId: userId,
		Title:  title,
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.ConversationRepository().Create(ctx, convo); err != nil {
		return nil, err
	}

	return &dto.CreateConversationResponse{
		Id:        convo.Id,
		CreatedAt: convo.CreatedAt,
	}, nil
}

func (cs *chatService) GetAllConversations(ctx context.Context, userId uuid.UUID, includeArchived bool) ([]*dto.GetAllConversationsResponse, error) {
	specs := []specification.Specification{
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "updated_at", Desc: true},
	}
	if !includeArchived {
		specs = append(specs, specification.NotArchived{})
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	conversations, err := uow.ConversationRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	response := make([]*dto.GetAllConversationsResponse, len(conversations))
	for i, c := range conversations {
		response[i] = &dto.GetAllConversationsResponse{
			Id:         c.Id,
			Title:      c.Title,
			IsArchived: c.IsArchived,
			CreatedAt:  c.CreatedAt,
			UpdatedAt:  c.UpdatedAt,
		}
	}
	return response, nil
}

// ownedConversation resolves the conversation and enforces ownership in
// one lookup; a foreign conversation is indistinguishable from a
// missing one.
func (cs *chatService) ownedConversation(ctx context.Context, uow unitofwork.UnitOfWork, userId, conversationId uuid.UUID) (*entity.Conversation, error) {
	convo, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: conversationId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if convo == nil {
		return nil, apperr.ErrNotFound
	}
	return convo, nil
}

func (cs *chatService) ArchiveConversation(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) error {
	return cs.setArchived(ctx, userId, conversationId, true)
}

func (cs *chatService) UnarchiveConversation(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) error {
	return cs.setArchived(ctx, userId, conversationId, false)
}

func (cs *chatService) setArchived(ctx context.Context, userId, conversationId uuid.UUID, archived bool) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if _, err := cs.ownedConversation(ctx, uow, userId, conversationId); err != nil {
		return err
	}
	return uow.ConversationRepository().SetArchived(ctx, conversationId, archived)
}

// DeleteConversation soft-deletes the conversation row and purges its
// messages and summary in one transaction.
func (cs *chatService) DeleteConversation(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if _, err := cs.ownedConversation(ctx, uow, userId, conversationId); err != nil {
		return err
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ChatMessageRepository().DeleteByConversationIdUnscoped(ctx, conversationId); err != nil {
		return err
	}
	if err := uow.ConversationSummaryRepository().DeleteByConversationId(ctx, conversationId); err != nil {
		return err
	}
	if err := uow.ConversationRepository().Delete(ctx, conversationId); err != nil {
		return err
	}

	return uow.Commit()
}

func (cs *chatService) GetChatHistory(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID, page dto.HistoryPage) ([]*dto.GetChatHistoryResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if _, err := cs.ownedConversation(ctx, uow, userId, conversationId); err != nil {
		return nil, err
	}

	// before_seq is the scroll-up cursor: the newest messages older than
	// the ones the client already holds. Fetch those descending, then
	// flip back to chronological order.
	backward := page.BeforeSeq > 0

	specs := []specification.Specification{
		specification.ByConversationID{ConversationID: conversationId},
		specification.OrderBy{Field: "seq", Desc: backward},
	}
	if page.AfterSeq > 0 {
		specs = append(specs, specification.SeqAfter{Seq: page.AfterSeq})
	}
	if backward {
		specs = append(specs, specification.SeqBefore{Seq: page.BeforeSeq})
	}
	if page.Limit > 0 {
		specs = append(specs, specification.Limit{Limit: page.Limit})
	}

	messages, err := uow.ChatMessageRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}
	if backward {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}

	response := make([]*dto.GetChatHistoryResponse, len(messages))
	for i, m := range messages {
		response[i] = &dto.GetChatHistoryResponse{
			Seq:       m.Seq,
			Role:      m.Role,
			Content:   m.Content,
			Model:     m.Model,
			Metadata:  m.Metadata,
			CreatedAt: m.CreatedAt,
		}
	}
	return response, nil
}

// SendChat runs one full turn: persist the user message, assemble
// context, call the model, persist the reply, then fan out the
// turn-completed event. The user message commits before the model call,
// so an upstream failure never loses what the user typed.
func (cs *chatService) SendChat(ctx context.Context, userId uuid.UUID, request *dto.SendChatRequest) (*dto.SendChatResponse, error) {
	start := time.Now()
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	convo, err := cs.ownedConversation(ctx, uow, userId, request.ConversationId)
	if err != nil {
		return nil, err
	}
	if convo.IsArchived {
		return nil, apperr.ErrNotFound
	}

	userMsg := &entity.ChatMessage{
		ConversationId: convo.Id,
		AuthorId:       &userId,
		Role:           constant.ChatMessageRoleUser,
		Content:        request.Message,
	}
	if err := uow.ChatMessageRepository().Append(ctx, userMsg); err != nil {
		return nil, err
	}

	// HRV fetch and context assembly run concurrently; both degrade
	// rather than fail the turn.
	hrvRange := health.NormalizeRange(request.HrvRange, cs.cfg.DefaultHrvRange)
	hrvCh := make(chan *health.HrvContext, 1)
	go func() {
		if cs.hrvClient == nil {
			hrvCh <- &health.HrvContext{}
			return
		}
		hrvCh <- cs.hrvClient.FetchContext(ctx, userId.String(), hrvRange)
	}()

	bundle, err := cs.assembler.Assemble(ctx, convo.Id, userId, request.Message)
	if err != nil {
		return nil, err
	}
	hrvContext := <-hrvCh

	messages := prompt.BuildChatMessages(bundle, hrvContext, hrvRange)
	reply, err := cs.llmProvider.Chat(ctx, messages, llm.WithTemperature(0.7))
	if err != nil {
		cs.logger.Error("chat", "LLM call failed", map[string]interface{}{
			"conversation_id": convo.Id.String(),
			"error":           err.Error(),
		})
		return nil, apperr.Upstream("llm", err)
	}

	assistantMsg := &entity.ChatMessage{
		ConversationId: convo.Id,
		Role:           constant.ChatMessageRoleAssistant,
		Content:        reply,
		Model:          cs.cfg.LLMModel,
		Metadata: map[string]interface{}{
			"rag_hits":   len(bundle.Snippets),
			"hrv_range":  hrvRange,
			"latency_ms": time.Since(start).Milliseconds(),
		},
	}
	if err := uow.ChatMessageRepository().Append(ctx, assistantMsg); err != nil {
		return nil, err
	}

	cs.publishTurnCompleted(ctx, convo.Id, userId, assistantMsg.Seq)

	return &dto.SendChatResponse{
		ConversationId: convo.Id,
		Sent: &dto.SendChatResponseTurn{
			Seq:       userMsg.Seq,
			Role:      userMsg.Role,
			Content:   userMsg.Content,
			CreatedAt: userMsg.CreatedAt,
		},
		Reply: &dto.SendChatResponseTurn{
			Seq:       assistantMsg.Seq,
			Role:      assistantMsg.Role,
			Content:   assistantMsg.Content,
			CreatedAt: assistantMsg.CreatedAt,
		},
		UsedContext: bundle.Summary != "" || len(bundle.Snippets) > 0 || !hrvContext.IsEmpty(),
		HrvRange:    hrvRange,
		RagK:        cs.cfg.RetrievalK,
	}, nil
}

// publishTurnCompleted fans the event out to the in-process bus (which
// drives summarization), the NATS mirror, and the user's websocket
// clients. All three are best-effort.
func (cs *chatService) publishTurnCompleted(ctx context.Context, conversationId, userId uuid.UUID, lastSeq int64) {
	payload := dto.TurnCompletedMessage{
		ConversationId: conversationId,
		UserId:         userId,
		LastSeq:        lastSeq,
	}

	if cs.pubSub != nil {
		data, err := json.Marshal(payload)
		if err == nil {
			msg := message.NewMessage(watermill.NewUUID(), data)
			if err := cs.pubSub.Publish(constant.ChatTurnCompletedTopic, msg); err != nil {
				cs.logger.Warn("chat", "Failed to publish turn event", map[string]interface{}{"error": err.Error()})
			}
		}
	}

	if cs.natsPublisher != nil {
		event := events.NewEvent(constant.ChatTurnCompletedEventType, map[string]interface{}{
			"conversation_id": conversationId.String(),
			"user_id":         userId.String(),
			"last_seq":        lastSeq,
		})
		if err := cs.natsPublisher.Publish(ctx, event); err != nil {
			cs.logger.Warn("chat", "Failed to mirror turn event to NATS", map[string]interface{}{"error": err.Error()})
		}
	}

	if cs.hub != nil {
		cs.hub.Notify(userId, websocket.Notification{
			Type:           constant.ChatTurnCompletedEventType,
			ConversationId: conversationId,
			Data:           map[string]interface{}{"last_seq": lastSeq},
		})
	}
}
