package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"taskchat/internal/httpkit"
)

// OpenAIClient reaches an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAIClient creates a gateway to an OpenAI-compatible API.
// baseURL may be empty for the official endpoint.
func NewOpenAIClient(apiKey, baseURL, model string, logger *slog.Logger) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpkit.NewClient()),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  model,
		logger: logger,
	}, nil
}

// Generate performs one blocking chat completion round trip. Any error
// from the provider is reported as ErrUnavailable.
func (c *OpenAIClient) Generate(ctx context.Context, messages []Message, tools []ToolDef) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Messages: convertMessages(messages),
		Model:    openai.ChatModel(c.model),
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		c.logger.Error("chat completion failed", "model", c.model, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", ErrUnavailable)
	}

	choice := completion.Choices[0]
	resp := &Response{Text: choice.Message.Content}

	for _, tc := range choice.Message.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			Name:       tc.Function.Name,
			Parameters: parseArguments(tc.Function.Arguments, c.logger),
		})
	}

	c.logger.Debug("chat completion",
		"model", c.model,
		"messages", len(messages),
		"tool_calls", len(resp.ToolCalls),
	)

	return resp, nil
}

// convertMessages translates provider-neutral messages to the OpenAI
// message union.
func convertMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case "system":
			result[i] = openai.SystemMessage(msg.Content)
		case "assistant":
			result[i] = openai.AssistantMessage(msg.Content)
		default:
			result[i] = openai.UserMessage(msg.Content)
		}
	}
	return result
}

// convertTools translates tool definitions to OpenAI function tools.
// ToolDef.Parameters is already JSON Schema, so it maps straight onto
// FunctionParameters.
func convertTools(tools []ToolDef) []openai.ChatCompletionToolUnionParam {
	result := make([]openai.ChatCompletionToolUnionParam, len(tools))
	for i, tool := range tools {
		result[i] = openai.ChatCompletionFunctionTool(
			openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  openai.FunctionParameters(tool.Parameters),
			},
		)
	}
	return result
}

// parseArguments decodes the model's argument JSON. Unparsable
// arguments become an empty map rather than failing the round trip;
// the tool layer rejects missing parameters on its own terms.
func parseArguments(raw string, logger *slog.Logger) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		logger.Warn("unparsable tool arguments", "raw", raw, "error", err)
		return map[string]any{}
	}
	return args
}
