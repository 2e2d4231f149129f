package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Conversation struct {
	// Ids are assigned application-side so the schema stays portable
	// across Postgres and the sqlite test databases.
	Id         uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId     uuid.UUID `gorm:"type:uuid;not null;index"` // User ownership for data isolation
	Title      string    `gorm:"type:text;not null"`
	IsArchived bool      `gorm:"not null;default:false"`
	// LastSeq backs the per-conversation sequence counter. Appends bump it
	// inside the same transaction that inserts the message, so sequence ids
	// stay gap-free even under concurrent turns.
	LastSeq   int64          `gorm:"not null;default:0"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (Conversation) TableName() string {
	return "conversations"
}
