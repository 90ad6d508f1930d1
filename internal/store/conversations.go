package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message roles. These are the only two values the conversation log
// accepts; everything else is rejected before it reaches the database.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrInvalidRole is returned by Append when the role is not exactly
// "user" or "assistant".
var ErrInvalidRole = errors.New("invalid message role")

// Conversation is one chat session's identity. Its message log is
// append-only; the only mutation is the updated_at bump on append.
type Conversation struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one turn in a conversation. Messages are immutable once
// created. ToolCalls carries the serialized tool-call record for
// assistant messages, or "" when no tools were requested.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	OwnerID        string    `json:"-"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	ToolCalls      string    `json:"tool_calls,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateConversation starts a new conversation for ownerID.
func (s *Store) CreateConversation(ctx context.Context, ownerID string) (*Conversation, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, id, ownerID, now, now)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	return &Conversation{ID: id, OwnerID: ownerID, CreatedAt: now, UpdatedAt: now}, nil
}

// GetConversation returns the conversation with the given id if it
// belongs to ownerID. A malformed id, a missing row, and a row owned by
// a different user all come back as ErrNotFound.
func (s *Store) GetConversation(ctx context.Context, ownerID, id string) (*Conversation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, created_at, updated_at
		FROM conversations WHERE id = ? AND owner_id = ?
	`, id, ownerID)

	var c Conversation
	err := row.Scan(&c.ID, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &c, nil
}

// ListConversations returns the owner's conversations, most recently
// updated first.
func (s *Store) ListConversations(ctx context.Context, ownerID string) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, created_at, updated_at
		FROM conversations WHERE owner_id = ?
		ORDER BY updated_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	convs := []Conversation{}
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// LoadRecent returns the most recent limit messages of a conversation,
// ordered oldest first. Both the conversation id and the owner id must
// match. Returns an empty slice (never an error) when there is no
// history.
func (s *Store) LoadRecent(ctx context.Context, conversationID, ownerID string, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, owner_id, role, content, tool_calls, created_at FROM (
			SELECT id, conversation_id, owner_id, role, content, tool_calls, created_at, rowid AS seq
			FROM messages
			WHERE conversation_id = ? AND owner_id = ?
			ORDER BY created_at DESC, seq DESC
			LIMIT ?
		) ORDER BY created_at ASC, seq ASC
	`, conversationID, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var m Message
		var toolCalls sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.OwnerID, &m.Role, &m.Content, &toolCalls, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.ToolCalls = toolCalls.String
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Append adds a single message to a conversation and bumps the
// conversation's updated_at, atomically. toolCalls is the serialized
// tool-call record, or "" for none.
func (s *Store) Append(ctx context.Context, conversationID, ownerID, role, content, toolCalls string) (*Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	msg, err := appendTx(ctx, tx, conversationID, ownerID, role, content, toolCalls)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}
	return msg, nil
}

// AppendExchange stores one user turn and one assistant turn in a
// single transaction, so a failure between the two appends leaves no
// orphaned user message. toolCalls attaches to the assistant message.
func (s *Store) AppendExchange(ctx context.Context, conversationID, ownerID, userContent, assistantContent, toolCalls string) (*Message, *Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin exchange: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	userMsg, err := appendTx(ctx, tx, conversationID, ownerID, RoleUser, userContent, "")
	if err != nil {
		return nil, nil, err
	}
	assistantMsg, err := appendTx(ctx, tx, conversationID, ownerID, RoleAssistant, assistantContent, toolCalls)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit exchange: %w", err)
	}
	return userMsg, assistantMsg, nil
}

// appendTx inserts one message inside tx. UUIDv7 message ids keep id
// order and creation order in agreement.
func appendTx(ctx context.Context, tx *sql.Tx, conversationID, ownerID, role, content, toolCalls string) (*Message, error) {
	if role != RoleUser && role != RoleAssistant {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}
	now := time.Now().UTC()

	var tc any
	if toolCalls != "" {
		tc = toolCalls
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, owner_id, role, content, tool_calls, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id.String(), conversationID, ownerID, role, content, tc, now)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE conversations SET updated_at = ? WHERE id = ? AND owner_id = ?",
		now, conversationID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	return &Message{
		ID:             id.String(),
		ConversationID: conversationID,
		OwnerID:        ownerID,
		Role:           role,
		Content:        content,
		ToolCalls:      toolCalls,
		CreatedAt:      now,
	}, nil
}
