// Package llm provides the model gateway: provider-neutral chat types
// and the client interface the chat orchestrator depends on.
package llm

// Message represents a chat message for the model.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// ToolDef describes one callable tool to the model: a name, a free-text
// description, and a JSON-schema parameter map. The set of definitions
// is static and sent identically on every call.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall is one tool invocation requested by the model. Parameters is
// the decoded argument object; it originates from model output and must
// not be trusted to self-limit scope.
type ToolCall struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

// Response is the unified result of one model round trip.
type Response struct {
	Text      string
	ToolCalls []ToolCall
}
