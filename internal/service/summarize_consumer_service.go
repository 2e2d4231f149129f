package service

import (
	"context"
	"encoding/json"

	"neuroheart-chat-be/internal/constant"
	"neuroheart-chat-be/internal/dto"
	"neuroheart-chat-be/internal/pkg/logger"
	"neuroheart-chat-be/internal/websocket"
	"neuroheart-chat-be/pkg/convo/summarizer"
	"neuroheart-chat-be/pkg/events"
	natspub "neuroheart-chat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type ISummarizeConsumerService interface {
	Consume(ctx context.Context) error
}

// summarizeConsumerService listens for completed turns and runs the
// summarization trigger off the request path. Summarization is
// best-effort: a failed pass is logged and dropped, the next turn
// simply retries with more messages.
type summarizeConsumerService struct {
	pubSub        *gochannel.GoChannel
	topicName     string
	summarizer    *summarizer.Summarizer
	natsPublisher *natspub.Publisher // nil when NATS is not configured
	hub           *websocket.Hub     // nil in workers and tests
	logger        logger.ILogger
}

func NewSummarizeConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	convoSummarizer *summarizer.Summarizer,
	natsPublisher *natspub.Publisher,
	hub *websocket.Hub,
	log logger.ILogger,
) ISummarizeConsumerService {
	return &summarizeConsumerService{
		pubSub:        pubSub,
		topicName:     topicName,
		summarizer:    convoSummarizer,
		natsPublisher: natsPublisher,
		hub:           hub,
		logger:        log,
	}
}

func (cs *summarizeConsumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *summarizeConsumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.TurnCompletedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("summarize-consumer", "Failed to unmarshal message", map[string]interface{}{"error": err.Error()})
		msg.Ack() // malformed, retrying cannot help
		return
	}

	advanced, err := cs.summarizer.MaybeSummarize(ctx, payload.ConversationId)
	if err != nil {
		// Dropped on purpose. The trigger refires on the next turn.
		cs.logger.Warn("summarize-consumer", "Summarization pass failed", map[string]interface{}{
			"conversation_id": payload.ConversationId.String(),
			"error":           err.Error(),
		})
		msg.Ack()
		return
	}

	if advanced {
		cs.notifySummaryRefreshed(ctx, payload)
	}

	msg.Ack()
}

func (cs *summarizeConsumerService) notifySummaryRefreshed(ctx context.Context, payload dto.TurnCompletedMessage) {
	if cs.natsPublisher != nil {
		event := events.NewEvent(constant.SummaryRefreshedEventType, map[string]interface{}{
			"conversation_id": payload.ConversationId.String(),
			"user_id":         payload.UserId.String(),
		})
		if err := cs.natsPublisher.Publish(ctx, event); err != nil {
			cs.logger.Warn("summarize-consumer", "Failed to mirror summary event to NATS", map[string]interface{}{"error": err.Error()})
		}
	}

	if cs.hub != nil {
		cs.hub.Notify(payload.UserId, websocket.Notification{
			Type:           constant.SummaryRefreshedEventType,
			ConversationId: payload.ConversationId,
		})
	}
}
