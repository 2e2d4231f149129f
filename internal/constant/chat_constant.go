package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
	ChatMessageRoleSystem    = "system"

	// Topic for the in-process bus: one event per completed chat turn.
	ChatTurnCompletedTopic = "CHAT_TURN_COMPLETED"

	// Subject suffix for NATS mirroring (events.chat.turn.completed).
	ChatTurnCompletedEventType = "chat.turn.completed"
	SummaryRefreshedEventType  = "chat.summary.refreshed"

	// SystemPromptV1 is the assistant persona prepended to every turn.
	SystemPromptV1 = `You are NeuroHeart, a personal health insights assistant. Use the provided HRV and health context when relevant to give personalized advice. Never reference another user's data. Keep answers concise, practical, and supportive.`

	// SummarizerSystemPromptV1 primes the fold call.
	SummarizerSystemPromptV1 = `You are a precise summarizer.`
)

// IsValidChatRole reports whether role belongs to the closed role set.
// Enforced at write time; the store never persists anything else.
func IsValidChatRole(role string) bool {
	switch role {
	case ChatMessageRoleUser, ChatMessageRoleAssistant, ChatMessageRoleSystem:
		return true
	}
	return false
}
