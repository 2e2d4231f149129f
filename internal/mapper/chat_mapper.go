package mapper

import (
	"encoding/json"
	"time"

	"neuroheart-chat-be/internal/entity"
	"neuroheart-chat-be/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Conversation Mappers

func (m *ChatMapper) ConversationToEntity(c *model.Conversation) *entity.Conversation {
	if c == nil {
		return nil
	}

	var deletedAt *time.Time
	if c.DeletedAt.Valid {
		t := c.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		updatedAt = &t
	}

	return &entity.Conversation{
		Id:         c.Id,
		UserId:     c.UserId,
		Title:      c.Title,
		IsArchived: c.IsArchived,
		LastSeq:    c.LastSeq,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  updatedAt,
		DeletedAt:  deletedAt,
		IsDeleted:  c.DeletedAt.Valid,
	}
}

func (m *ChatMapper) ConversationToModel(c *entity.Conversation) *model.Conversation {
	if c == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if c.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *c.DeletedAt, Valid: true}
	} else if c.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if c.UpdatedAt != nil {
		updatedAt = *c.UpdatedAt
	}

	return &model.Conversation{
		Id:         c.Id,
		UserId:     c.UserId,
		Title:      c.Title,
		IsArchived: c.IsArchived,
		LastSeq:    c.LastSeq,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  updatedAt,
		DeletedAt:  deletedAt,
	}
}

// Message Mappers

func (m *ChatMapper) ChatMessageToEntity(msg *model.ChatMessage) *entity.ChatMessage {
	if msg == nil {
		return nil
	}

	var metadata map[string]interface{}
	if len(msg.Metadata) > 0 {
		// Best effort; a corrupt metadata blob should not break history reads.
		_ = json.Unmarshal(msg.Metadata, &metadata)
	}

	return &entity.ChatMessage{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Seq:            msg.Seq,
		AuthorId:       msg.AuthorId,
		Role:           msg.Role,
		Content:        msg.Content,
		Model:          msg.Model,
		Metadata:       metadata,
		CreatedAt:      msg.CreatedAt,
	}
}

func (m *ChatMapper) ChatMessageToModel(msg *entity.ChatMessage) *model.ChatMessage {
	if msg == nil {
		return nil
	}

	var metadata datatypes.JSON
	if msg.Metadata != nil {
		if raw, err := json.Marshal(msg.Metadata); err == nil {
			metadata = raw
		}
	}

	return &model.ChatMessage{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Seq:            msg.Seq,
		AuthorId:       msg.AuthorId,
		Role:           msg.Role,
		Content:        msg.Content,
		Model:          msg.Model,
		Metadata:       metadata,
		CreatedAt:      msg.CreatedAt,
	}
}

// Summary Mappers

func (m *ChatMapper) SummaryToEntity(s *model.ConversationSummary) *entity.ConversationSummary {
	if s == nil {
		return nil
	}
	return &entity.ConversationSummary{
		ConversationId: s.ConversationId,
		Summary:        s.Summary,
		Watermark:      s.Watermark,
		UpdatedAt:      s.UpdatedAt,
	}
}

func (m *ChatMapper) SummaryToModel(s *entity.ConversationSummary) *model.ConversationSummary {
	if s == nil {
		return nil
	}
	return &model.ConversationSummary{
		ConversationId: s.ConversationId,
		Summary:        s.Summary,
		Watermark:      s.Watermark,
		UpdatedAt:      s.UpdatedAt,
	}
}
