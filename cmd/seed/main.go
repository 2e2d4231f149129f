package main

import (
	"context"
	"log"

	"neuroheart-chat-be/internal/config"
	"neuroheart-chat-be/internal/entity"
	"neuroheart-chat-be/internal/repository/specification"
	"neuroheart-chat-be/internal/repository/unitofwork"
	"neuroheart-chat-be/pkg/database"
	"neuroheart-chat-be/pkg/embedding"
)

// Seeds the global HRV knowledge base the retriever searches. Safe to
// re-run: chunks already present (same source) are skipped.
var knowledgeSeeds = []struct {
	Source  string
	Content string
}{
	{
		Source:  "hrv-basics",
		Content: "Heart rate variability (HRV) measures the variation in time between consecutive heartbeats. Higher HRV generally indicates better cardiovascular fitness and stress resilience. rMSSD is the most common short-term HRV metric and primarily reflects parasympathetic (rest-and-digest) nervous system activity.",
	},
	{
		Source:  "hrv-sleep",
		Content: "Poor or short sleep typically suppresses next-morning HRV. A single bad night can lower rMSSD by 10-20% relative to baseline. Consistently low HRV across several days of normal sleep may point to accumulated training load, illness onset, or psychological stress.",
	},
	{
		Source:  "hrv-training",
		Content: "HRV-guided training adjusts intensity based on morning readiness readings. When HRV is at or above the personal baseline, high-intensity sessions are well tolerated. When HRV drops well below baseline for consecutive days, favor low-intensity or rest days until readings recover.",
	},
	{
		Source:  "hrv-alcohol-caffeine",
		Content: "Alcohol in the evening reliably lowers overnight HRV and elevates resting heart rate. Caffeine's effect on HRV is smaller and varies by individual, but late intake can reduce deep sleep and indirectly lower morning readings.",
	},
	{
		Source:  "hrv-measurement",
		Content: "Measure HRV at a consistent time, ideally immediately after waking, before coffee or screens. Compare readings against a rolling personal baseline rather than population norms; absolute rMSSD values vary widely between healthy individuals.",
	},
}

func main() {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Fatalf("Error: Failed to connect to database: %v", err)
	}

	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
	}

	ctx := context.Background()
	uow := unitofwork.NewRepositoryFactory(db).NewUnitOfWork(ctx)
	repo := uow.KnowledgeChunkRepository()

	seeded := 0
	for _, seed := range knowledgeSeeds {
		count, err := repo.Count(ctx, specification.BySource{Source: seed.Source})
		if err != nil {
			log.Fatalf("Error: Failed to check existing chunk %q: %v", seed.Source, err)
		}
		if count > 0 {
			log.Printf("Skip: %q already seeded", seed.Source)
			continue
		}

		vector, err := embeddingProvider.Generate(ctx, seed.Content, embedding.TaskTypeRetrievalDocument)
		if err != nil {
			log.Fatalf("Error: Failed to embed %q: %v", seed.Source, err)
		}

		chunk := &entity.KnowledgeChunk{
			Kind:      entity.KnowledgeChunkKindKnowledge,
			Source:    seed.Source,
			Content:   seed.Content,
			Embedding: vector,
		}
		if err := repo.Create(ctx, chunk); err != nil {
			log.Fatalf("Error: Failed to create chunk %q: %v", seed.Source, err)
		}
		seeded++
		log.Printf("Seeded: %q", seed.Source)
	}

	log.Printf("✅ Success: %d knowledge chunks seeded.", seeded)
}
