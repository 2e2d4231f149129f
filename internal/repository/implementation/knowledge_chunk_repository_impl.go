package implementation

import (
	"context"
	"time"

	"neuroheart-chat-be/internal/entity"
	"neuroheart-chat-be/internal/mapper"
	"neuroheart-chat-be/internal/model"
	"neuroheart-chat-be/internal/repository/contract"
	"neuroheart-chat-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type KnowledgeChunkRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.KnowledgeMapper
}

func NewKnowledgeChunkRepository(db *gorm.DB) contract.KnowledgeChunkRepository {
	return &KnowledgeChunkRepositoryImpl{
		db:     db,
		mapper: mapper.NewKnowledgeMapper(),
	}
}

func (r *KnowledgeChunkRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *KnowledgeChunkRepositoryImpl) Create(ctx context.Context, chunk *entity.KnowledgeChunk) error {
	if chunk.Id == uuid.Nil {
		chunk.Id = uuid.New()
	}
	m := r.mapper.ToModel(chunk)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*chunk = *r.mapper.ToEntity(m)
	return nil
}

func (r *KnowledgeChunkRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.KnowledgeChunk{}, id).Error
}

func (r *KnowledgeChunkRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.KnowledgeChunk, error) {
	var models []*model.KnowledgeChunk
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.KnowledgeChunk, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *KnowledgeChunkRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.KnowledgeChunk{}), specs...)
	err := query.Count(&count).Error
	return count, err
}

// SearchSimilar ranks by pgvector cosine distance. Visibility: global
// knowledge chunks, or memory chunks belonging to the calling user.
func (r *KnowledgeChunkRepositoryImpl) SearchSimilar(ctx context.Context, embedding []float32, limit int, userId uuid.UUID, recencyDays int) ([]*entity.KnowledgeChunk, error) {
	if limit <= 0 {
		limit = 5
	}

	query := r.db.WithContext(ctx).
		Where("(user_id IS NULL AND kind = ?) OR (user_id = ? AND kind = ?)",
			entity.KnowledgeChunkKindKnowledge, userId, entity.KnowledgeChunkKindMemory)

	if recencyDays > 0 {
		query = query.Where("created_at >= ?", time.Now().AddDate(0, 0, -recencyDays))
	}

	var models []*model.KnowledgeChunk
	err := query.
		Order(gorm.Expr("embedding <=> ?", pgvector.NewVector(embedding))).
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	entities := make([]*entity.KnowledgeChunk, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}
