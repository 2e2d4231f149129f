package contract

import (
	"context"

	"neuroheart-chat-be/internal/entity"
	"neuroheart-chat-be/internal/repository/specification"

	"github.com/google/uuid"
)

type KnowledgeChunkRepository interface {
	Create(ctx context.Context, chunk *entity.KnowledgeChunk) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.KnowledgeChunk, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// SearchSimilar returns chunks by ascending cosine distance to the
	// query embedding, restricted to global knowledge plus the caller's
	// own memory chunks. recencyDays > 0 filters out older chunks.
	SearchSimilar(ctx context.Context, embedding []float32, limit int, userId uuid.UUID, recencyDays int) ([]*entity.KnowledgeChunk, error)
}
