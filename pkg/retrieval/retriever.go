package retrieval

import (
	"context"
	"strings"

	"neuroheart-chat-be/internal/repository/unitofwork"
	"neuroheart-chat-be/pkg/embedding"

	"github.com/google/uuid"
)

// Snippet is one retrieved passage, tagged as reference material rather
// than a conversation turn.
type Snippet struct {
	Text   string
	Source string
	Kind   string
}

// Retriever is the similarity-search capability the context assembler
// depends on. Implementations return snippets in relevance-descending
// order.
type Retriever interface {
	Search(ctx context.Context, userId uuid.UUID, query string, k int) ([]Snippet, error)
}

type Config struct {
	MaxPassageChars int
	RecencyDays     int
}

// PgvectorRetriever embeds the query and ranks knowledge chunks by
// cosine distance in Postgres.
type PgvectorRetriever struct {
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
	cfg               Config
}

var _ Retriever = &PgvectorRetriever{}

func NewPgvectorRetriever(
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
	cfg Config,
) *PgvectorRetriever {
	if cfg.MaxPassageChars <= 0 {
		cfg.MaxPassageChars = 600
	}
	return &PgvectorRetriever{
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		cfg:               cfg,
	}
}

func (r *PgvectorRetriever) Search(ctx context.Context, userId uuid.UUID, query string, k int) ([]Snippet, error) {
	vector, err := r.embeddingProvider.Generate(ctx, query, embedding.TaskTypeRetrievalQuery)
	if err != nil {
		return nil, err
	}

	uow := r.uowFactory.NewUnitOfWork(ctx)
	chunks, err := uow.KnowledgeChunkRepository().SearchSimilar(ctx, vector, k, userId, r.cfg.RecencyDays)
	if err != nil {
		return nil, err
	}

	out := make([]Snippet, 0, len(chunks))
	seen := make(map[string]struct{})
	for _, c := range chunks {
		text := strings.TrimSpace(c.Content)
		if text == "" {
			continue
		}
		// Dedup near-identical chunks by their first 80 chars.
		key := text
		if len(key) > 80 {
			key = key[:80]
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		if len(text) > r.cfg.MaxPassageChars {
			text = text[:r.cfg.MaxPassageChars]
		}
		out = append(out, Snippet{
			Text:   text,
			Source: c.Source,
			Kind:   c.Kind,
		})
	}

	return out, nil
}
