package implementation

import (
	"context"
	"errors"
	"time"

	"neuroheart-chat-be/internal/entity"
	"neuroheart-chat-be/internal/mapper"
	"neuroheart-chat-be/internal/model"
	"neuroheart-chat-be/internal/pkg/apperr"
	"neuroheart-chat-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConversationSummaryRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewConversationSummaryRepository(db *gorm.DB) contract.ConversationSummaryRepository {
	return &ConversationSummaryRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ConversationSummaryRepositoryImpl) Get(ctx context.Context, conversationId uuid.UUID) (*entity.ConversationSummary, error) {
	var m model.ConversationSummary
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Never summarized: empty summary, nil watermark.
			return &entity.ConversationSummary{ConversationId: conversationId}, nil
		}
		return nil, err
	}
	return r.mapper.SummaryToEntity(&m), nil
}

// Apply is the watermark compare-and-swap: a single conditional UPDATE
// (read-compare-write in one statement) so it stays correct with
// multiple service instances and no application-level locks. A delayed
// fold that lost the race gets ErrStaleWatermark instead of clobbering
// the newer summary.
func (r *ConversationSummaryRepositoryImpl) Apply(ctx context.Context, conversationId uuid.UUID, summary string, watermark int64) error {
	update := func() (int64, error) {
		res := r.db.WithContext(ctx).Model(&model.ConversationSummary{}).
			Where("conversation_id = ?", conversationId).
			Where("summarized_through_seq IS NULL OR summarized_through_seq < ?", watermark).
			Updates(map[string]interface{}{
				"summary":                summary,
				"summarized_through_seq": watermark,
				"updated_at":             time.Now(),
			})
		return res.RowsAffected, res.Error
	}

	affected, err := update()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	// Either the row does not exist yet or the stored watermark is newer.
	row := &model.ConversationSummary{
		ConversationId: conversationId,
		Summary:        summary,
		Watermark:      &watermark,
		UpdatedAt:      time.Now(),
	}
	ins := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if ins.Error != nil {
		return ins.Error
	}
	if ins.RowsAffected > 0 {
		return nil
	}

	// Insert conflicted: another pass created the row between our two
	// statements. One more conditional update settles who wins.
	affected, err = update()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.ErrStaleWatermark
	}
	return nil
}

func (r *ConversationSummaryRepositoryImpl) DeleteByConversationId(ctx context.Context, conversationId uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId).
		Delete(&model.ConversationSummary{}).Error
}
