package entity

import (
	"time"

	"github.com/google/uuid"
)

// ConversationSummary is the rolling summary of everything up to and
// including the message at Watermark. Watermark is nil until the first
// fold and only ever moves forward.
type ConversationSummary struct {
	ConversationId uuid.UUID
	Summary        string
	Watermark      *int64
	UpdatedAt      time.Time
}

// WatermarkOrZero is the convenience form used by "messages after the
// watermark" queries; seq numbering starts at 1.
func (s *ConversationSummary) WatermarkOrZero() int64 {
	if s == nil || s.Watermark == nil {
		return 0
	}
	return *s.Watermark
}
