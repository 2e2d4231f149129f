package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"neuroheart-chat-be/internal/constant"
	"neuroheart-chat-be/internal/entity"
	"neuroheart-chat-be/internal/pkg/apperr"
	"neuroheart-chat-be/internal/pkg/logger"
	"neuroheart-chat-be/internal/repository/specification"
	"neuroheart-chat-be/internal/repository/unitofwork"
	"neuroheart-chat-be/pkg/llm"

	"github.com/google/uuid"
)

// Config tunes when a fold fires. Either threshold alone is enough.
type Config struct {
	AfterMessages int // fold when this many unsummarized messages exist
	AfterChars    int // ...or when their combined content crosses this
	RetainRecent  int // newest messages excluded from the fold (0 = fold all)
}

// Summarizer maintains the rolling summary for a conversation. It is
// best-effort end to end: a failed or raced fold leaves the previous
// summary in place and the next turn simply retries with a bigger tail.
type Summarizer struct {
	uowFactory unitofwork.RepositoryFactory
	llm        llm.LLMProvider
	cfg        Config
	logger     logger.ILogger
}

func NewSummarizer(
	uowFactory unitofwork.RepositoryFactory,
	llmProvider llm.LLMProvider,
	cfg Config,
	log logger.ILogger,
) *Summarizer {
	return &Summarizer{
		uowFactory: uowFactory,
		llm:        llmProvider,
		cfg:        cfg,
		logger:     log,
	}
}

// MaybeSummarize folds the unsummarized tail into the rolling summary if
// either threshold is crossed. The bool reports whether the watermark
// advanced. Thresholds not met and lost watermark races both return
// (false, nil); both are normal.
func (s *Summarizer) MaybeSummarize(ctx context.Context, conversationId uuid.UUID) (bool, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	current, err := uow.ConversationSummaryRepository().Get(ctx, conversationId)
	if err != nil {
		return false, err
	}

	tail, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: conversationId},
		specification.SeqAfter{Seq: current.WatermarkOrZero()},
		specification.OrderBy{Field: "seq"},
	)
	if err != nil {
		return false, err
	}

	if s.cfg.RetainRecent > 0 {
		if len(tail) <= s.cfg.RetainRecent {
			return false, nil
		}
		tail = tail[:len(tail)-s.cfg.RetainRecent]
	}

	if !s.shouldFold(tail) {
		return false, nil
	}

	newSummary, err := s.fold(ctx, current.Summary, tail)
	if err != nil {
		return false, apperr.Upstream("llm", err)
	}

	newWatermark := tail[len(tail)-1].Seq
	err = uow.ConversationSummaryRepository().Apply(ctx, conversationId, newSummary, newWatermark)
	if errors.Is(err, apperr.ErrStaleWatermark) {
		// Another fold already advanced past us. Keep theirs.
		s.logger.Debug("summarizer", "Fold lost watermark race", map[string]interface{}{
			"conversation_id": conversationId.String(),
			"watermark":       newWatermark,
		})
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.logger.Info("summarizer", "Summary advanced", map[string]interface{}{
		"conversation_id": conversationId.String(),
		"watermark":       newWatermark,
		"folded_messages": len(tail),
	})
	return true, nil
}

func (s *Summarizer) shouldFold(tail []*entity.ChatMessage) bool {
	if len(tail) == 0 {
		return false
	}
	if s.cfg.AfterMessages > 0 && len(tail) >= s.cfg.AfterMessages {
		return true
	}
	if s.cfg.AfterChars > 0 {
		total := 0
		for _, m := range tail {
			total += len(m.Content)
		}
		if total >= s.cfg.AfterChars {
			return true
		}
	}
	return false
}

// fold asks the model to merge the previous summary with the new
// transcript, keeping the structured sections stable across folds so
// nothing gets silently dropped between passes.
func (s *Summarizer) fold(ctx context.Context, previous string, tail []*entity.ChatMessage) (string, error) {
	var b strings.Builder

	b.WriteString("Update the session summary below by folding in the new messages.\n")
	b.WriteString("Keep these sections, carrying forward anything still relevant:\n")
	b.WriteString("USER_PROFILE, SYMPTOMS_AND_TRIGGERS, KEY_EVENTS, ACTION_ITEMS, OPEN_QUESTIONS.\n")
	b.WriteString("Be factual and compact. Do not invent details.\n\n")

	b.WriteString("PREVIOUS_SUMMARY:\n")
	if strings.TrimSpace(previous) == "" {
		b.WriteString("(none)\n")
	} else {
		b.WriteString(previous)
		b.WriteString("\n")
	}

	b.WriteString("\nNEW_MESSAGES:\n")
	for _, m := range tail {
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
	}

	out, err := s.llm.Chat(ctx, []llm.Message{
		{Role: constant.ChatMessageRoleSystem, Content: constant.SummarizerSystemPromptV1},
		{Role: constant.ChatMessageRoleUser, Content: b.String()},
	}, llm.WithTemperature(0.2))
	if err != nil {
		return "", err
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("summarizer returned empty output")
	}
	return out, nil
}
