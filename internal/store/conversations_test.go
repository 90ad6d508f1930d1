package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestGetConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "1")
	if err != nil {
		t.Fatalf("CreateConversation error: %v", err)
	}

	tests := []struct {
		name    string
		ownerID string
		id      string
		wantErr error
	}{
		{"own conversation", "1", conv.ID, nil},
		{"wrong owner", "2", conv.ID, ErrNotFound},
		{"unknown id", "1", "0e0e8c22-8f4e-4a70-9fbf-dc5c54a31f4e", ErrNotFound},
		{"malformed id", "1", "not-a-uuid", ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.GetConversation(ctx, tt.ownerID, tt.id)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("GetConversation = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAppend_RejectsBadRoles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, _ := s.CreateConversation(ctx, "1")

	for _, role := range []string{"system", "tool", "operator", ""} {
		t.Run("role "+role, func(t *testing.T) {
			_, err := s.Append(ctx, conv.ID, "1", role, "hi", "")
			if !errors.Is(err, ErrInvalidRole) {
				t.Errorf("Append(role=%q) err = %v, want ErrInvalidRole", role, err)
			}
		})
	}

	// Nothing persisted by the rejected appends.
	msgs, err := s.LoadRecent(ctx, conv.ID, "1", 10)
	if err != nil {
		t.Fatalf("LoadRecent error: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("rejected appends left %d messages behind", len(msgs))
	}
}

func TestLoadRecent_OrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, _ := s.CreateConversation(ctx, "1")
	for i := 0; i < 25; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		if _, err := s.Append(ctx, conv.ID, "1", role, fmt.Sprintf("msg %02d", i), ""); err != nil {
			t.Fatalf("Append %d error: %v", i, err)
		}
	}

	t.Run("caps at limit, oldest first", func(t *testing.T) {
		msgs, err := s.LoadRecent(ctx, conv.ID, "1", 20)
		if err != nil {
			t.Fatalf("LoadRecent error: %v", err)
		}
		if len(msgs) != 20 {
			t.Fatalf("LoadRecent returned %d messages, want 20", len(msgs))
		}
		// The 5 oldest fall off; the window starts at msg 05.
		if msgs[0].Content != "msg 05" {
			t.Errorf("first message = %q, want %q", msgs[0].Content, "msg 05")
		}
		if msgs[19].Content != "msg 24" {
			t.Errorf("last message = %q, want %q", msgs[19].Content, "msg 24")
		}
	})

	t.Run("short history returned whole", func(t *testing.T) {
		msgs, err := s.LoadRecent(ctx, conv.ID, "1", 100)
		if err != nil {
			t.Fatalf("LoadRecent error: %v", err)
		}
		if len(msgs) != 25 {
			t.Errorf("LoadRecent returned %d messages, want all 25", len(msgs))
		}
	})

	t.Run("owner filter", func(t *testing.T) {
		msgs, err := s.LoadRecent(ctx, conv.ID, "2", 20)
		if err != nil {
			t.Fatalf("LoadRecent error: %v", err)
		}
		if len(msgs) != 0 {
			t.Errorf("stranger read %d messages", len(msgs))
		}
	})
}

func TestLoadRecent_EmptyHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, _ := s.CreateConversation(ctx, "1")
	msgs, err := s.LoadRecent(ctx, conv.ID, "1", 20)
	if err != nil {
		t.Fatalf("LoadRecent on empty history: %v", err)
	}
	if msgs == nil || len(msgs) != 0 {
		t.Errorf("LoadRecent = %v, want empty slice", msgs)
	}
}

func TestAppendExchange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, _ := s.CreateConversation(ctx, "1")

	userMsg, assistantMsg, err := s.AppendExchange(ctx, conv.ID, "1", "add milk", "Done!", `[{"name":"add_task"}]`)
	if err != nil {
		t.Fatalf("AppendExchange error: %v", err)
	}
	if userMsg.Role != RoleUser || assistantMsg.Role != RoleAssistant {
		t.Errorf("roles = %q/%q, want user/assistant", userMsg.Role, assistantMsg.Role)
	}

	msgs, _ := s.LoadRecent(ctx, conv.ID, "1", 10)
	if len(msgs) != 2 {
		t.Fatalf("LoadRecent returned %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[1].Role != RoleAssistant {
		t.Errorf("order = %q,%q, want user then assistant", msgs[0].Role, msgs[1].Role)
	}
	if msgs[1].ToolCalls != `[{"name":"add_task"}]` {
		t.Errorf("assistant tool calls = %q", msgs[1].ToolCalls)
	}
	if msgs[0].ToolCalls != "" {
		t.Errorf("user message should carry no tool calls, got %q", msgs[0].ToolCalls)
	}

	// Conversation timestamp bumped.
	got, _ := s.GetConversation(ctx, "1", conv.ID)
	if !got.UpdatedAt.After(conv.UpdatedAt) && !got.UpdatedAt.Equal(conv.UpdatedAt) {
		t.Errorf("updated_at went backwards: %v -> %v", conv.UpdatedAt, got.UpdatedAt)
	}
}

func TestAppendExchange_RollsBackOnFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, _ := s.CreateConversation(ctx, "1")

	// The conversation belongs to owner 1, so the exchange fails on the
	// conversation bump; neither message may survive.
	if _, _, err := s.AppendExchange(ctx, conv.ID, "2", "hi", "hello", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("AppendExchange as stranger: err = %v, want ErrNotFound", err)
	}

	msgs, _ := s.LoadRecent(ctx, conv.ID, "1", 10)
	if len(msgs) != 0 {
		t.Errorf("failed exchange left %d messages behind", len(msgs))
	}
}

func TestListConversations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _ := s.CreateConversation(ctx, "1")
	b, _ := s.CreateConversation(ctx, "1")
	s.CreateConversation(ctx, "2")

	// Touch a so it becomes the most recently updated.
	if _, err := s.Append(ctx, a.ID, "1", RoleUser, "bump", ""); err != nil {
		t.Fatalf("Append error: %v", err)
	}

	convs, err := s.ListConversations(ctx, "1")
	if err != nil {
		t.Fatalf("ListConversations error: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("ListConversations returned %d, want 2", len(convs))
	}
	if convs[0].ID != a.ID || convs[1].ID != b.ID {
		t.Errorf("order = %s,%s; want most recently updated first", convs[0].ID, convs[1].ID)
	}
}
