package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Keys      APIKeys
	Ai        AIConfig
	Convo     ConvoConfig
	Retrieval RetrievalConfig
	Hrv       HrvConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	GoogleGemini string
	OpenAI       string
}

type AIConfig struct {
	EmbeddingProvider string // "gemini" or "ollama"
	OllamaBaseURL     string
	OllamaModel       string
	LLMProvider       string // "ollama", "openai"
	LLMModel          string // e.g. "llama3", "gpt-4o-mini"
}

// ConvoConfig tunes the rolling-summary machinery. All thresholds are
// env-driven so summarization behavior changes without a deploy.
type ConvoConfig struct {
	RecentWindow       int // verbatim turns handed to the model
	ContextCharBudget  int // hard ceiling for the assembled bundle
	SummarizeAfterMsgs int // fold when this many unsummarized messages pile up
	SummarizeAfterChar int // ...or when their combined length crosses this
	SummarizeRetain    int // newest messages kept out of the fold (0 = fold all)
}

type RetrievalConfig struct {
	TopK            int
	MaxPassageChars int
	RecencyDays     int // 0 disables the recency filter
}

type HrvConfig struct {
	ApiURL       string
	ApiKey       string
	DefaultRange string
}

type RateLimitConfig struct {
	ChatPerMinute int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			OpenAI:       getEnv("OPENAI_API_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "gemini"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:       getEnv("LLM_PROVIDER", "openai"),
			LLMModel:          getEnv("LLM_MODEL", "gpt-4o-mini"),
		},
		Convo: ConvoConfig{
			RecentWindow:       getEnvAsInt("CONVO_RECENT_WINDOW", 20),
			ContextCharBudget:  getEnvAsInt("CONVO_CONTEXT_CHAR_BUDGET", 400_000),
			SummarizeAfterMsgs: getEnvAsInt("SUMMARIZE_AFTER_MESSAGES", 8),
			SummarizeAfterChar: getEnvAsInt("SUMMARIZE_AFTER_CHARS", 16_000),
			SummarizeRetain:    getEnvAsInt("SUMMARIZE_RETAIN_RECENT", 0),
		},
		Retrieval: RetrievalConfig{
			TopK:            getEnvAsInt("RAG_TOP_K", 3),
			MaxPassageChars: getEnvAsInt("RAG_MAX_PASSAGE_CHARS", 600),
			RecencyDays:     getEnvAsInt("RAG_RECENCY_DAYS", 0),
		},
		Hrv: HrvConfig{
			ApiURL:       getEnv("HRV_API_URL", "http://127.0.0.1:8002"),
			ApiKey:       getEnv("HRV_API_KEY", ""),
			DefaultRange: getEnv("HRV_DEFAULT_RANGE", "7d"),
		},
		RateLimit: RateLimitConfig{
			ChatPerMinute: getEnvAsInt("CHAT_RATE_LIMIT_PER_MINUTE", 20),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
