// Package chat implements the chat-driven tool-execution pipeline: one
// inbound message becomes one model round trip, zero or more tool
// executions, and one persisted user/assistant exchange.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"taskchat/internal/llm"
	"taskchat/internal/store"
	"taskchat/internal/tools"
)

// ErrConversationNotFound is returned when the caller supplied a
// conversation reference that is malformed, unknown, or owned by a
// different user. A supplied reference that does not resolve is a hard
// error; silently starting a fresh thread would mask client bugs. Only
// an absent reference creates a new conversation.
var ErrConversationNotFound = errors.New("conversation not found")

// DefaultHistoryLimit bounds how many prior messages are sent to the
// model per request.
const DefaultHistoryLimit = 20

const systemPrompt = "You are a helpful TODO assistant. You help users manage their tasks using natural language. " +
	"You have access to 5 tools: add_task, list_tasks, complete_task, delete_task, and update_task. " +
	"Use these tools to execute user requests. Always confirm actions and provide friendly feedback."

// Response is the unified chat result returned to the boundary layer.
type Response struct {
	ConversationID string         `json:"conversation_id"`
	Response       string         `json:"response"`
	ToolCalls      []tools.Result `json:"tool_calls,omitempty"`
}

// Orchestrator owns the chat request lifecycle. All collaborators are
// injected; nothing here is process-global, so tests can substitute the
// gateway with a stub.
type Orchestrator struct {
	store        *store.Store
	registry     *tools.Registry
	gateway      llm.Client
	logger       *slog.Logger
	historyLimit int
}

// New creates an orchestrator. historyLimit <= 0 selects
// DefaultHistoryLimit.
func New(st *store.Store, registry *tools.Registry, gateway llm.Client, historyLimit int, logger *slog.Logger) *Orchestrator {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Orchestrator{
		store:        st,
		registry:     registry,
		gateway:      gateway,
		logger:       logger,
		historyLimit: historyLimit,
	}
}

// HandleChat processes one chat message for ownerID.
//
// The step order matters for failure atomicity: the model round trip
// happens before anything is persisted, so a gateway failure (reported
// as llm.ErrUnavailable) leaves no trace of the request. Tool mutations
// commit independently inside their own calls; the two chat-log appends
// share one transaction so a failure between them cannot orphan the
// user turn. A brand-new conversation row is only created once the
// round trip has succeeded.
func (o *Orchestrator) HandleChat(ctx context.Context, ownerID, conversationRef, message string) (*Response, error) {
	// Resolve the conversation reference up front so a bad reference
	// fails before the model is consulted.
	var conv *store.Conversation
	if conversationRef != "" {
		c, err := o.store.GetConversation(ctx, ownerID, conversationRef)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("resolve conversation: %w", err)
		}
		conv = c
	}

	// Load recent history, oldest first, already owner-filtered.
	var history []store.Message
	if conv != nil {
		h, err := o.store.LoadRecent(ctx, conv.ID, ownerID, o.historyLimit)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		history = h
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: store.RoleUser, Content: message})

	// One blocking round trip. No retries; the caller retries by
	// issuing a new request.
	reply, err := o.gateway.Generate(ctx, messages, o.registry.Definitions())
	if err != nil {
		return nil, err
	}

	// Execute requested tool calls sequentially, in model order. A
	// failed or unknown tool becomes an error payload in its result
	// slot and never aborts the calls after it.
	var results []tools.Result
	for _, call := range reply.ToolCalls {
		params := call.Parameters
		if params == nil {
			params = map[string]any{}
		}
		results = append(results, tools.Result{
			Name:       call.Name,
			Parameters: params,
			Result:     o.registry.Dispatch(ctx, ownerID, call.Name, params),
		})
	}

	toolCallsJSON := ""
	if len(results) > 0 {
		b, err := json.Marshal(results)
		if err != nil {
			return nil, fmt.Errorf("encode tool calls: %w", err)
		}
		toolCallsJSON = string(b)
	}

	if conv == nil {
		c, err := o.store.CreateConversation(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
		conv = c
	}

	if _, _, err := o.store.AppendExchange(ctx, conv.ID, ownerID, message, reply.Text, toolCallsJSON); err != nil {
		return nil, fmt.Errorf("persist exchange: %w", err)
	}

	o.logger.Info("chat request processed",
		"owner", ownerID,
		"conversation", conv.ID,
		"tool_calls", len(results),
	)

	return &Response{
		ConversationID: conv.ID,
		Response:       reply.Text,
		ToolCalls:      results,
	}, nil
}
