package implementation

import (
	"context"
	"errors"
	"time"

	"neuroheart-chat-be/internal/constant"
	"neuroheart-chat-be/internal/entity"
	"neuroheart-chat-be/internal/mapper"
	"neuroheart-chat-be/internal/model"
	"neuroheart-chat-be/internal/pkg/apperr"
	"neuroheart-chat-be/internal/repository/contract"
	"neuroheart-chat-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatMessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewChatMessageRepository(db *gorm.DB) contract.ChatMessageRepository {
	return &ChatMessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatMessageRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

// Append performs the transactional increment-and-insert: the UPDATE on
// the conversation row takes its row lock and advances last_seq, so two
// concurrent appends to the same conversation serialize there and
// sequence ids come out strictly increasing with no gaps. The same
// UPDATE bumps updated_at, which is the recency key for listings.
func (r *ChatMessageRepositoryImpl) Append(ctx context.Context, message *entity.ChatMessage) error {
	if !constant.IsValidChatRole(message.Role) {
		return apperr.ErrInvalidRole
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Conversation{}).
			Where("id = ?", message.ConversationId).
			Updates(map[string]interface{}{
				"last_seq":   gorm.Expr("last_seq + 1"),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrNotFound
		}

		var seq int64
		if err := tx.Model(&model.Conversation{}).
			Where("id = ?", message.ConversationId).
			Select("last_seq").Scan(&seq).Error; err != nil {
			return err
		}

		message.Seq = seq
		if message.Id == uuid.Nil {
			message.Id = uuid.New()
		}
		if message.CreatedAt.IsZero() {
			message.CreatedAt = time.Now()
		}

		m := r.mapper.ChatMessageToModel(message)
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		*message = *r.mapper.ChatMessageToEntity(m)
		return nil
	})
}

func (r *ChatMessageRepositoryImpl) DeleteByConversationIdUnscoped(ctx context.Context, conversationId uuid.UUID) error {
	return r.db.WithContext(ctx).Unscoped().
		Where("conversation_id = ?", conversationId).
		Delete(&model.ChatMessage{}).Error
}

func (r *ChatMessageRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatMessage, error) {
	var m model.ChatMessage
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ChatMessageToEntity(&m), nil
}

func (r *ChatMessageRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error) {
	var models []*model.ChatMessage
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.ChatMessage, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ChatMessageToEntity(m)
	}
	return entities, nil
}

func (r *ChatMessageRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ChatMessage{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
