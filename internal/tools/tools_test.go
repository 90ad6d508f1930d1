package tools

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"taskchat/internal/store"
)

func newTestRegistry(t *testing.T) (*Registry, *store.Store) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open error: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.DiscardHandler)
	return NewRegistry(st, logger), st
}

func errText(result map[string]any) string {
	s, _ := result["error"].(string)
	return s
}

func TestDefinitions(t *testing.T) {
	r, _ := newTestRegistry(t)

	defs := r.Definitions()
	if len(defs) != 5 {
		t.Fatalf("Definitions returned %d tools, want 5", len(defs))
	}

	want := []string{"add_task", "list_tasks", "complete_task", "delete_task", "update_task"}
	for i, name := range want {
		if defs[i].Name != name {
			t.Errorf("tool %d = %q, want %q", i, defs[i].Name, name)
		}
		if defs[i].Description == "" {
			t.Errorf("tool %q has no description", name)
		}
		if defs[i].Parameters["type"] != "object" {
			t.Errorf("tool %q schema type = %v, want object", name, defs[i].Parameters["type"])
		}
	}
}

func TestDispatch_UnknownTool(t *testing.T) {
	r, _ := newTestRegistry(t)

	result := r.Dispatch(context.Background(), "1", "archive_task", map[string]any{})
	if !strings.Contains(errText(result), "Unknown tool: archive_task") {
		t.Errorf("unknown tool result = %v", result)
	}
}

func TestAddTask(t *testing.T) {
	r, st := newTestRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		params  map[string]any
		wantErr string
	}{
		{"ok", map[string]any{"title": "buy milk"}, ""},
		{"trims title", map[string]any{"title": "  spaced  "}, ""},
		{"empty title", map[string]any{"title": "   "}, "Task title cannot be empty"},
		{"missing title", map[string]any{}, "Task title cannot be empty"},
		{"title too long", map[string]any{"title": strings.Repeat("x", 201)}, "Task title must be 200 characters or less"},
		{"description too long", map[string]any{"title": "ok", "description": strings.Repeat("x", 2001)}, "Description must be 2000 characters or less"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := r.Dispatch(ctx, "1", "add_task", tt.params)
			if got := errText(result); got != tt.wantErr {
				t.Fatalf("error = %q, want %q", got, tt.wantErr)
			}
			if tt.wantErr == "" && result["id"] == nil {
				t.Errorf("success payload missing id: %v", result)
			}
		})
	}

	// The failed calls must not have created anything.
	tasks, _ := st.ListTasks(ctx, "1", store.FilterAll)
	if len(tasks) != 2 {
		t.Errorf("store holds %d tasks, want 2", len(tasks))
	}
}

func TestListTasks(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	r.Dispatch(ctx, "1", "add_task", map[string]any{"title": "one"})
	r.Dispatch(ctx, "1", "add_task", map[string]any{"title": "two"})
	r.Dispatch(ctx, "2", "add_task", map[string]any{"title": "not yours"})

	result := r.Dispatch(ctx, "1", "list_tasks", map[string]any{})
	if result["count"] != 2 {
		t.Errorf("count = %v, want 2", result["count"])
	}

	result = r.Dispatch(ctx, "1", "list_tasks", map[string]any{"status": "banana"})
	if !strings.Contains(errText(result), "Invalid status 'banana'") {
		t.Errorf("bad status result = %v", result)
	}
}

func TestCompleteTask(t *testing.T) {
	r, st := newTestRegistry(t)
	ctx := context.Background()

	added := r.Dispatch(ctx, "1", "add_task", map[string]any{"title": "Buy milk"})
	id := added["id"].(int64)

	t.Run("by substring", func(t *testing.T) {
		result := r.Dispatch(ctx, "1", "complete_task", map[string]any{"title": "milk"})
		if errText(result) != "" {
			t.Fatalf("complete by substring failed: %v", result)
		}
		task, _ := st.GetTask(ctx, "1", id)
		if !task.Completed {
			t.Error("task not marked complete")
		}
	})

	t.Run("neither identifier", func(t *testing.T) {
		result := r.Dispatch(ctx, "1", "complete_task", map[string]any{})
		if errText(result) != "Either task_id or title must be provided" {
			t.Errorf("result = %v", result)
		}
	})

	t.Run("cross-owner by id", func(t *testing.T) {
		result := r.Dispatch(ctx, "2", "complete_task", map[string]any{"task_id": float64(id)})
		if errText(result) != "Task not found or not owned by you" {
			t.Errorf("result = %v", result)
		}
	})

	t.Run("id as string", func(t *testing.T) {
		result := r.Dispatch(ctx, "1", "complete_task", map[string]any{"task_id": "banana"})
		// Unparsable id falls through to title matching, which is absent.
		if errText(result) != "Either task_id or title must be provided" {
			t.Errorf("result = %v", result)
		}
	})
}

func TestDeleteTask(t *testing.T) {
	r, st := newTestRegistry(t)
	ctx := context.Background()

	added := r.Dispatch(ctx, "1", "add_task", map[string]any{"title": "doomed"})
	id := added["id"].(int64)

	result := r.Dispatch(ctx, "2", "delete_task", map[string]any{"task_id": float64(id)})
	if errText(result) != "Task not found or not owned by you" {
		t.Errorf("cross-owner delete result = %v", result)
	}
	if _, err := st.GetTask(ctx, "1", id); err != nil {
		t.Fatal("cross-owner delete removed the task")
	}

	result = r.Dispatch(ctx, "1", "delete_task", map[string]any{"title": "DOOM"})
	if errText(result) != "" {
		t.Fatalf("delete by substring failed: %v", result)
	}
	tasks, _ := st.ListTasks(ctx, "1", store.FilterAll)
	if len(tasks) != 0 {
		t.Errorf("store still holds %d tasks", len(tasks))
	}
}

func TestUpdateTask(t *testing.T) {
	r, st := newTestRegistry(t)
	ctx := context.Background()

	added := r.Dispatch(ctx, "1", "add_task", map[string]any{"title": "draft report", "description": "v1"})
	id := added["id"].(int64)

	t.Run("no new values", func(t *testing.T) {
		result := r.Dispatch(ctx, "1", "update_task", map[string]any{"task_id": float64(id)})
		if errText(result) != "Either new_title or new_description must be provided" {
			t.Fatalf("result = %v", result)
		}
		task, _ := st.GetTask(ctx, "1", id)
		if task.Title != "draft report" || task.Description != "v1" {
			t.Errorf("no-op update mutated the task: %+v", task)
		}
	})

	t.Run("missing identifier", func(t *testing.T) {
		result := r.Dispatch(ctx, "1", "update_task", map[string]any{"new_title": "x"})
		if errText(result) != "Either task_id or current_title must be provided" {
			t.Errorf("result = %v", result)
		}
	})

	t.Run("by current_title", func(t *testing.T) {
		result := r.Dispatch(ctx, "1", "update_task", map[string]any{
			"current_title": "report",
			"new_title":     "final report",
		})
		if errText(result) != "" {
			t.Fatalf("update failed: %v", result)
		}
		task, _ := st.GetTask(ctx, "1", id)
		if task.Title != "final report" {
			t.Errorf("title = %q, want %q", task.Title, "final report")
		}
	})

	t.Run("clear description", func(t *testing.T) {
		result := r.Dispatch(ctx, "1", "update_task", map[string]any{
			"task_id":         float64(id),
			"new_description": "",
		})
		if errText(result) != "" {
			t.Fatalf("update failed: %v", result)
		}
		task, _ := st.GetTask(ctx, "1", id)
		if task.Description != "" {
			t.Errorf("description = %q, want cleared", task.Description)
		}
	})

	t.Run("new title too long", func(t *testing.T) {
		result := r.Dispatch(ctx, "1", "update_task", map[string]any{
			"task_id":   float64(id),
			"new_title": strings.Repeat("x", 201),
		})
		if errText(result) != "New title must be 200 characters or less" {
			t.Errorf("result = %v", result)
		}
	})
}

func TestRoundTrip_AddThenFind(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	r.Dispatch(ctx, "1", "add_task", map[string]any{"title": "Buy milk"})

	listed := r.Dispatch(ctx, "1", "list_tasks", map[string]any{"status": "all"})
	if listed["count"] != 1 {
		t.Fatalf("list after add: %v", listed)
	}

	completed := r.Dispatch(ctx, "1", "complete_task", map[string]any{"title": "milk"})
	if errText(completed) != "" {
		t.Fatalf("complete after add: %v", completed)
	}

	pending := r.Dispatch(ctx, "1", "list_tasks", map[string]any{"status": "pending"})
	if pending["count"] != 0 {
		t.Errorf("pending after complete: %v", pending)
	}
}
