package sessions

import (
	"context"
	"fmt"
	"testing"

	"github.com/haasonsaas/nexus/pkg/models"
)

func TestTrimToPairsPreservesToolCallPairing(t *testing.T) {
	msgs := []*models.Message{
		{Role: models.RoleSystem, Content: "sys"},
	}
	for i := 0; i < 5; i++ {
		msgs = append(msgs,
			&models.Message{Role: models.RoleUser, Content: fmt.Sprintf("u%d", i)},
			&models.Message{Role: models.RoleAssistant, Content: fmt.Sprintf("a%d", i),
				ToolCalls: []models.ToolCall{{ID: fmt.Sprintf("tc%d", i), Name: "x"}}},
			&models.Message{Role: models.RoleTool, ToolResults: []models.ToolResult{{ToolCallID: fmt.Sprintf("tc%d", i)}}},
		)
	}
	// 1 system + 5 turns * 3 messages = 16 total.
	trimmed := trimToPairs(msgs, 10)

	if trimmed[0].Role != models.RoleSystem {
		t.Fatalf("system message must survive trimming, got role %q first", trimmed[0].Role)
	}

	// Every remaining assistant message's tool calls must have a
	// matching tool message immediately after within the trimmed slice.
	for i, m := range trimmed {
		if m.Role != models.RoleAssistant || len(m.ToolCalls) == 0 {
			continue
		}
		if i+1 >= len(trimmed) || trimmed[i+1].Role != models.RoleTool {
			t.Fatalf("assistant message with tool calls at index %d has no following tool message", i)
		}
	}

	// No turn should start mid-way: every non-system message must
	// belong to a user-started turn (first non-system message is user).
	for i, m := range trimmed {
		if m.Role == models.RoleSystem {
			continue
		}
		if m.Role != models.RoleUser {
			t.Fatalf("first non-system message at index %d must be user, got %q", i, m.Role)
		}
		break
	}
}

func TestTrimToPairsIsIdempotent(t *testing.T) {
	var msgs []*models.Message
	for i := 0; i < 5; i++ {
		msgs = append(msgs,
			&models.Message{Role: models.RoleUser, Content: fmt.Sprintf("u%d", i)},
			&models.Message{Role: models.RoleAssistant, Content: fmt.Sprintf("a%d", i)},
		)
	}
	once := trimToPairs(msgs, 4)
	twice := trimToPairs(once, 4)
	if len(once) != len(twice) {
		t.Fatalf("trimming an already-trimmed session changed length: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("trimming an already-trimmed session is not a no-op at index %d", i)
		}
	}
}

func TestTrimToPairsUnderLimitNoop(t *testing.T) {
	msgs := []*models.Message{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello"},
	}
	trimmed := trimToPairs(msgs, 100)
	if len(trimmed) != 2 {
		t.Fatalf("expected no trimming under the limit, got %d messages", len(trimmed))
	}
}

func TestMemoryStoreAppendTrimsInPairs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	session, err := store.GetOrCreate(ctx, "k", "agent", models.ChannelType("api"), "chat")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	for i := 0; i < maxMessagesPerSession+50; i++ {
		if err := store.AppendMessage(ctx, session.ID, &models.Message{
			Role:    models.RoleUser,
			Content: fmt.Sprintf("u%d", i),
		}); err != nil {
			t.Fatalf("append user: %v", err)
		}
		if err := store.AppendMessage(ctx, session.ID, &models.Message{
			Role:    models.RoleAssistant,
			Content: fmt.Sprintf("a%d", i),
		}); err != nil {
			t.Fatalf("append assistant: %v", err)
		}
	}

	history, err := store.GetHistory(ctx, session.ID, 0)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(history) > maxMessagesPerSession {
		t.Fatalf("history not trimmed: %d messages, limit %d", len(history), maxMessagesPerSession)
	}
	if history[0].Role != models.RoleUser {
		t.Fatalf("expected trimming to cut on turn boundaries, first message role = %q", history[0].Role)
	}
}
