package entity

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	Id         uuid.UUID
	UserId     uuid.UUID
	Title      string
	IsArchived bool
	LastSeq    int64
	CreatedAt  time.Time
	UpdatedAt  *time.Time
	DeletedAt  *time.Time
	IsDeleted  bool
}
