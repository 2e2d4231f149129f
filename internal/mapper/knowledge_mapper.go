package mapper

import (
	"time"

	"neuroheart-chat-be/internal/entity"
	"neuroheart-chat-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type KnowledgeMapper struct{}

func NewKnowledgeMapper() *KnowledgeMapper {
	return &KnowledgeMapper{}
}

func (m *KnowledgeMapper) ToEntity(c *model.KnowledgeChunk) *entity.KnowledgeChunk {
	if c == nil {
		return nil
	}

	var deletedAt *time.Time
	if c.DeletedAt.Valid {
		t := c.DeletedAt.Time
		deletedAt = &t
	}

	return &entity.KnowledgeChunk{
		Id:        c.Id,
		UserId:    c.UserId,
		Kind:      c.Kind,
		Source:    c.Source,
		Content:   c.Content,
		Embedding: c.Embedding.Slice(),
		CreatedAt: c.CreatedAt,
		DeletedAt: deletedAt,
		IsDeleted: c.DeletedAt.Valid,
	}
}

func (m *KnowledgeMapper) ToModel(c *entity.KnowledgeChunk) *model.KnowledgeChunk {
	if c == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if c.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *c.DeletedAt, Valid: true}
	} else if c.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	return &model.KnowledgeChunk{
		Id:        c.Id,
		UserId:    c.UserId,
		Kind:      c.Kind,
		Source:    c.Source,
		Content:   c.Content,
		Embedding: pgvector.NewVector(c.Embedding),
		CreatedAt: c.CreatedAt,
		DeletedAt: deletedAt,
	}
}
