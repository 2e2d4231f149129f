package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByConversationID struct {
	ConversationID uuid.UUID
}

func (s ByConversationID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversation_id = ?", s.ConversationID)
}

// SeqAfter selects messages strictly newer than a sequence id. Used with
// the summary watermark to fetch the unsummarized tail.
type SeqAfter struct {
	Seq int64
}

func (s SeqAfter) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("seq > ?", s.Seq)
}

// SeqBefore selects messages strictly older than a sequence id. Used for
// history pagination.
type SeqBefore struct {
	Seq int64
}

func (s SeqBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("seq < ?", s.Seq)
}

// BySource selects knowledge chunks by their origin label.
type BySource struct {
	Source string
}

func (s BySource) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("source = ?", s.Source)
}

// NotArchived hides soft-archived conversations from default listings.
type NotArchived struct{}

func (s NotArchived) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("is_archived = ?", false)
}
