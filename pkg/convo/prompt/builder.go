package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"neuroheart-chat-be/internal/constant"
	"neuroheart-chat-be/pkg/convo/assembler"
	"neuroheart-chat-be/pkg/health"
	"neuroheart-chat-be/pkg/llm"
)

// BuildChatMessages turns an assembled bundle into the provider-agnostic
// message list for a chat completion. The system message carries the
// persona plus clearly delimited context sections; the recent turns
// follow verbatim in chronological order.
func BuildChatMessages(bundle *assembler.Bundle, hrv *health.HrvContext, hrvRange string) []llm.Message {
	var sys strings.Builder
	sys.WriteString(constant.SystemPromptV1)

	if strings.TrimSpace(bundle.Summary) != "" {
		sys.WriteString("\n\n--- SESSION_SUMMARY ---\n")
		sys.WriteString(bundle.Summary)
	}

	if !hrv.IsEmpty() {
		if data, err := json.Marshal(hrv); err == nil {
			fmt.Fprintf(&sys, "\n\n--- HRV_CONTEXT (range: %s) ---\n", hrvRange)
			sys.Write(data)
		}
	}

	if len(bundle.Snippets) > 0 {
		sys.WriteString("\n\n--- REFERENCE_CONTEXT ---\n")
		sys.WriteString("Background passages, not conversation turns. Use only if relevant.\n")
		for i, s := range bundle.Snippets {
			fmt.Fprintf(&sys, "[%d] (%s", i+1, s.Kind)
			if s.Source != "" {
				fmt.Fprintf(&sys, ", %s", s.Source)
			}
			sys.WriteString(")\n")
			sys.WriteString(s.Text)
			sys.WriteString("\n")
		}
	}

	messages := make([]llm.Message, 0, len(bundle.Recent)+1)
	messages = append(messages, llm.Message{
		Role:    constant.ChatMessageRoleSystem,
		Content: sys.String(),
	})
	for _, m := range bundle.Recent {
		messages = append(messages, llm.Message{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return messages
}
