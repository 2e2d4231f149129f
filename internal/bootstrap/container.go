package bootstrap

import (
	"context"
	"log"

	"neuroheart-chat-be/internal/config"
	"neuroheart-chat-be/internal/constant"
	"neuroheart-chat-be/internal/controller"
	"neuroheart-chat-be/internal/handler"
	"neuroheart-chat-be/internal/pkg/logger"
	"neuroheart-chat-be/internal/pkg/serverutils"
	"neuroheart-chat-be/internal/repository/unitofwork"
	"neuroheart-chat-be/internal/service"
	"neuroheart-chat-be/internal/websocket"
	"neuroheart-chat-be/pkg/convo/assembler"
	"neuroheart-chat-be/pkg/convo/summarizer"
	"neuroheart-chat-be/pkg/embedding"
	"neuroheart-chat-be/pkg/health"
	"neuroheart-chat-be/pkg/llm/factory"
	"neuroheart-chat-be/pkg/retrieval"

	pktNats "neuroheart-chat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController controller.IChatController

	// Background Services (Exposed for main.go to run)
	SummarizeConsumerService service.ISummarizeConsumerService

	// WebSockets
	WsHandler    *handler.WsHandler
	WebSocketHub *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Keys.OpenAI,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Infrastructure
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	wsLogger := logger.NewIsolatedLogger("logs/chat_ws.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	rateLimiter := serverutils.NewRateLimiter(rdb, cfg.RateLimit.ChatPerMinute)

	// 5. Conversation Machinery
	retriever := retrieval.NewPgvectorRetriever(uowFactory, embeddingProvider, retrieval.Config{
		MaxPassageChars: cfg.Retrieval.MaxPassageChars,
		RecencyDays:     cfg.Retrieval.RecencyDays,
	})

	contextAssembler := assembler.NewAssembler(uowFactory, retriever, assembler.Config{
		RecentWindow: cfg.Convo.RecentWindow,
		CharBudget:   cfg.Convo.ContextCharBudget,
		RetrievalK:   cfg.Retrieval.TopK,
	}, sysLogger)

	convoSummarizer := summarizer.NewSummarizer(uowFactory, llmProvider, summarizer.Config{
		AfterMessages: cfg.Convo.SummarizeAfterMsgs,
		AfterChars:    cfg.Convo.SummarizeAfterChar,
		RetainRecent:  cfg.Convo.SummarizeRetain,
	}, sysLogger)

	var hrvClient *health.HrvClient
	if cfg.Hrv.ApiURL != "" {
		hrvClient = health.NewHrvClient(cfg.Hrv.ApiURL, cfg.Hrv.ApiKey, sysLogger)
	}

	// 6. Services
	chatService := service.NewChatService(
		uowFactory,
		llmProvider,
		contextAssembler,
		hrvClient,
		pubSub,
		natsPub,
		wsHub,
		service.ChatServiceConfig{
			LLMModel:        cfg.Ai.LLMModel,
			DefaultHrvRange: cfg.Hrv.DefaultRange,
			RetrievalK:      cfg.Retrieval.TopK,
		},
		sysLogger,
	)

	summarizeConsumer := service.NewSummarizeConsumerService(
		pubSub,
		constant.ChatTurnCompletedTopic,
		convoSummarizer,
		natsPub,
		wsHub,
		sysLogger,
	)

	return &Container{
		ChatController:           controller.NewChatController(chatService, rateLimiter),
		SummarizeConsumerService: summarizeConsumer,
		WsHandler:                handler.NewWsHandler(wsHub, wsLogger),
		WebSocketHub:             wsHub,
	}
}
