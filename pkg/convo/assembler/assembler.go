package assembler

import (
	"context"

	"neuroheart-chat-be/internal/entity"
	"neuroheart-chat-be/internal/pkg/logger"
	"neuroheart-chat-be/internal/repository/specification"
	"neuroheart-chat-be/internal/repository/unitofwork"
	"neuroheart-chat-be/pkg/retrieval"

	"github.com/google/uuid"
)

// Bundle is the model-ready context for one chat turn: rolling summary,
// verbatim recent turns in chronological order, and retrieved snippets.
type Bundle struct {
	Summary  string
	Recent   []*entity.ChatMessage
	Snippets []retrieval.Snippet
}

type Config struct {
	RecentWindow int // max verbatim turns handed to the model
	CharBudget   int // hard ceiling for the whole bundle
	RetrievalK   int
}

// Assembler builds the context bundle for a turn. Retrieval runs
// concurrently with the database reads and degrades to empty snippets
// on any failure.
type Assembler struct {
	uowFactory unitofwork.RepositoryFactory
	retriever  retrieval.Retriever
	cfg        Config
	logger     logger.ILogger
}

func NewAssembler(
	uowFactory unitofwork.RepositoryFactory,
	retriever retrieval.Retriever,
	cfg Config,
	log logger.ILogger,
) *Assembler {
	return &Assembler{
		uowFactory: uowFactory,
		retriever:  retriever,
		cfg:        cfg,
		logger:     log,
	}
}

func (a *Assembler) Assemble(ctx context.Context, conversationId, userId uuid.UUID, query string) (*Bundle, error) {
	type retrievalResult struct {
		snippets []retrieval.Snippet
		err      error
	}
	retrievalCh := make(chan retrievalResult, 1)
	go func() {
		snippets, err := a.retriever.Search(ctx, userId, query, a.cfg.RetrievalK)
		retrievalCh <- retrievalResult{snippets: snippets, err: err}
	}()

	uow := a.uowFactory.NewUnitOfWork(ctx)

	summary, err := uow.ConversationSummaryRepository().Get(ctx, conversationId)
	if err != nil {
		return nil, err
	}

	recent, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: conversationId},
		specification.SeqAfter{Seq: summary.WatermarkOrZero()},
		specification.OrderBy{Field: "seq"},
	)
	if err != nil {
		return nil, err
	}
	if a.cfg.RecentWindow > 0 && len(recent) > a.cfg.RecentWindow {
		recent = recent[len(recent)-a.cfg.RecentWindow:]
	}

	res := <-retrievalCh
	snippets := res.snippets
	if res.err != nil {
		// Retrieval is optional context; the turn proceeds without it.
		a.logger.Warn("assembler", "Retrieval failed, assembling without snippets", map[string]interface{}{
			"conversation_id": conversationId.String(),
			"error":           res.err.Error(),
		})
		snippets = nil
	}

	bundle := &Bundle{
		Summary:  summary.Summary,
		Recent:   recent,
		Snippets: snippets,
	}
	trimToBudget(bundle, a.cfg.CharBudget)
	return bundle, nil
}

// trimToBudget shrinks the bundle until its character cost fits. Cheapest
// context goes first: snippets from least relevant, then recent turns
// from oldest. The summary and the newest message are never dropped,
// even if they alone exceed the budget.
func trimToBudget(b *Bundle, budget int) {
	if budget <= 0 {
		return
	}
	for charCost(b) > budget && len(b.Snippets) > 0 {
		b.Snippets = b.Snippets[:len(b.Snippets)-1]
	}
	for charCost(b) > budget && len(b.Recent) > 1 {
		b.Recent = b.Recent[1:]
	}
}

func charCost(b *Bundle) int {
	total := len(b.Summary)
	for _, m := range b.Recent {
		total += len(m.Content)
	}
	for _, s := range b.Snippets {
		total += len(s.Text)
	}
	return total
}
