// Package tools defines the fixed set of task-management tools exposed
// to the model, and executes the tool calls the model requests.
//
// The tool set is deliberately small and closed: five task CRUD
// operations, dispatched by an explicit switch rather than a dynamic
// lookup. Parameters arrive as loosely-typed maps decoded from model
// output; each case validates and coerces its own before touching the
// store. Every store query includes the owner id conjunctively with the
// task identifier; that is the sole isolation mechanism and is never
// relaxed, because the parameters originate from a third party.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"taskchat/internal/llm"
	"taskchat/internal/store"
)

// Result records one executed tool call: what was requested and what
// came back. Result carries either success fields or an "error" string,
// never both.
type Result struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
	Result     map[string]any `json:"result"`
}

// Registry executes tool calls against the task store.
type Registry struct {
	store  *store.Store
	logger *slog.Logger
}

// NewRegistry creates a tool registry bound to the given store.
func NewRegistry(st *store.Store, logger *slog.Logger) *Registry {
	return &Registry{store: st, logger: logger}
}

// Definitions returns the static tool schema sent to the model. The
// same five definitions go out on every call.
func (r *Registry) Definitions() []llm.ToolDef {
	return []llm.ToolDef{
		{
			Name:        "add_task",
			Description: "Add a new task for the user. Returns the task ID.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{
						"type":        "string",
						"description": "Task title (required, 1-200 characters)",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Optional task description (0-2000 characters)",
					},
				},
				"required": []string{"title"},
			},
		},
		{
			Name:        "list_tasks",
			Description: "List all tasks for the user. Optionally filter by completion status.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"status": map[string]any{
						"type":        "string",
						"description": "Filter by status: 'all' (default), 'pending', or 'completed'",
					},
				},
			},
		},
		{
			Name:        "complete_task",
			Description: "Mark a task as complete. Requires task ID or title.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task_id": map[string]any{
						"type":        "integer",
						"description": "Task ID (required if title not provided)",
					},
					"title": map[string]any{
						"type":        "string",
						"description": "Task title (required if task_id not provided)",
					},
				},
			},
		},
		{
			Name:        "delete_task",
			Description: "Delete a task. Requires task ID or title.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task_id": map[string]any{
						"type":        "integer",
						"description": "Task ID (required if title not provided)",
					},
					"title": map[string]any{
						"type":        "string",
						"description": "Task title (required if task_id not provided)",
					},
				},
			},
		},
		{
			Name:        "update_task",
			Description: "Update a task's title or description. Requires task ID or current title.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task_id": map[string]any{
						"type":        "integer",
						"description": "Task ID (required if current_title not provided)",
					},
					"current_title": map[string]any{
						"type":        "string",
						"description": "Current task title (required if task_id not provided)",
					},
					"new_title": map[string]any{
						"type":        "string",
						"description": "New task title (optional)",
					},
					"new_description": map[string]any{
						"type":        "string",
						"description": "New task description (optional)",
					},
				},
			},
		},
	}
}

// Dispatch executes one requested tool call for ownerID and returns its
// result payload. Unknown names and all execution failures come back as
// error payloads; Dispatch never returns an error or panics, so one bad
// call cannot abort the calls after it.
func (r *Registry) Dispatch(ctx context.Context, ownerID, name string, params map[string]any) map[string]any {
	var result map[string]any
	switch name {
	case "add_task":
		result = r.addTask(ctx, ownerID, params)
	case "list_tasks":
		result = r.listTasks(ctx, ownerID, params)
	case "complete_task":
		result = r.completeTask(ctx, ownerID, params)
	case "delete_task":
		result = r.deleteTask(ctx, ownerID, params)
	case "update_task":
		result = r.updateTask(ctx, ownerID, params)
	default:
		r.logger.Warn("unknown tool requested", "tool", name, "owner", ownerID)
		return errPayload("Unknown tool: %s", name)
	}

	if errText, failed := result["error"]; failed {
		r.logger.Info("tool call failed", "tool", name, "owner", ownerID, "error", errText)
	} else {
		r.logger.Info("tool call executed", "tool", name, "owner", ownerID)
	}
	return result
}

func errPayload(format string, args ...any) map[string]any {
	return map[string]any{"error": fmt.Sprintf(format, args...)}
}

// stringParam returns the named parameter as a string. Missing keys and
// non-string values come back as "".
func stringParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

// hasParam reports whether the model supplied the key at all, which is
// distinct from supplying an empty value (update_task uses an empty
// new_description to clear the field).
func hasParam(params map[string]any, key string) bool {
	_, ok := params[key]
	return ok
}

// intParam coerces the named parameter to an int64. JSON decoding hands
// numbers over as float64; models also occasionally quote ids.
func intParam(params map[string]any, key string) (int64, bool) {
	switch v := params[key].(type) {
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		i, err := v.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}
