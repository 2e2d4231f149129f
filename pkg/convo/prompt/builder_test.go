package prompt

import (
	"testing"

	"neuroheart-chat-be/internal/constant"
	"neuroheart-chat-be/internal/entity"
	"neuroheart-chat-be/pkg/convo/assembler"
	"neuroheart-chat-be/pkg/health"
	"neuroheart-chat-be/pkg/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildChatMessagesFullBundle(t *testing.T) {
	bundle := &assembler.Bundle{
		Summary: "user has been tracking sleep for two weeks",
		Recent: []*entity.ChatMessage{
			{Seq: 3, Role: constant.ChatMessageRoleUser, Content: "how is my recovery?"},
			{Seq: 4, Role: constant.ChatMessageRoleAssistant, Content: "your rMSSD trended up"},
			{Seq: 5, Role: constant.ChatMessageRoleUser, Content: "should I train today?"},
		},
		Snippets: []retrieval.Snippet{
			{Text: "rMSSD reflects parasympathetic activity", Kind: entity.KnowledgeChunkKindKnowledge, Source: "hrv-guide"},
		},
	}
	hrv := &health.HrvContext{
		SummaryMetrics: map[string]interface{}{"rmssd_avg": 42.5},
	}

	messages := BuildChatMessages(bundle, hrv, "7d")
	require.Len(t, messages, 4)

	sys := messages[0]
	assert.Equal(t, constant.ChatMessageRoleSystem, sys.Role)
	assert.Contains(t, sys.Content, constant.SystemPromptV1)
	assert.Contains(t, sys.Content, "SESSION_SUMMARY")
	assert.Contains(t, sys.Content, "tracking sleep for two weeks")
	assert.Contains(t, sys.Content, "HRV_CONTEXT (range: 7d)")
	assert.Contains(t, sys.Content, "rmssd_avg")
	assert.Contains(t, sys.Content, "REFERENCE_CONTEXT")
	assert.Contains(t, sys.Content, "hrv-guide")

	// Turns follow in chronological order with their original roles.
	assert.Equal(t, constant.ChatMessageRoleUser, messages[1].Role)
	assert.Equal(t, "how is my recovery?", messages[1].Content)
	assert.Equal(t, constant.ChatMessageRoleAssistant, messages[2].Role)
	assert.Equal(t, "should I train today?", messages[3].Content)
}

func TestBuildChatMessagesOmitsEmptySections(t *testing.T) {
	bundle := &assembler.Bundle{
		Recent: []*entity.ChatMessage{
			{Seq: 1, Role: constant.ChatMessageRoleUser, Content: "hello"},
		},
	}

	messages := BuildChatMessages(bundle, &health.HrvContext{}, "7d")
	require.Len(t, messages, 2)

	sys := messages[0].Content
	assert.NotContains(t, sys, "SESSION_SUMMARY")
	assert.NotContains(t, sys, "HRV_CONTEXT")
	assert.NotContains(t, sys, "REFERENCE_CONTEXT")
}

func TestBuildChatMessagesNilHrv(t *testing.T) {
	bundle := &assembler.Bundle{
		Recent: []*entity.ChatMessage{
			{Seq: 1, Role: constant.ChatMessageRoleUser, Content: "hello"},
		},
	}

	messages := BuildChatMessages(bundle, nil, "7d")
	require.Len(t, messages, 2)
	assert.NotContains(t, messages[0].Content, "HRV_CONTEXT")
}
