package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	KnowledgeChunkKindKnowledge = "knowledge" // global domain material
	KnowledgeChunkKindMemory    = "memory"    // per-user remembered facts
)

type KnowledgeChunk struct {
	Id        uuid.UUID
	UserId    *uuid.UUID // nil for global knowledge
	Kind      string
	Source    string
	Content   string
	Embedding []float32
	CreatedAt time.Time
	DeletedAt *time.Time
	IsDeleted bool
}
