package llm

import (
	"context"
	"errors"
)

// ErrUnavailable wraps every transport or provider error so callers can
// answer with a distinct "service unavailable" condition. The gateway
// never retries; a failed call is retried by the caller issuing a new
// request.
var ErrUnavailable = errors.New("model service unavailable")

// Client is the interface the chat orchestrator uses to reach a model
// provider. One call is one blocking round trip; the client keeps no
// session state between calls, so all context travels in messages.
type Client interface {
	Generate(ctx context.Context, messages []Message, tools []ToolDef) (*Response, error)
}
