package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type KnowledgeChunk struct {
	Id        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserId    *uuid.UUID      `gorm:"type:uuid;index"` // NULL = global knowledge
	Kind      string          `gorm:"type:varchar(20);not null;default:'knowledge';index"`
	Source    string          `gorm:"type:text"`
	Content   string          `gorm:"type:text;not null"`
	Embedding pgvector.Vector `gorm:"type:vector(768)"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
	DeletedAt gorm.DeletedAt  `gorm:"index"`
}

func (KnowledgeChunk) TableName() string {
	return "knowledge_chunks"
}
