package tools

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"taskchat/internal/store"
)

// Input length limits, shared with the REST boundary.
const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 2000
)

func (r *Registry) addTask(ctx context.Context, ownerID string, params map[string]any) map[string]any {
	title := strings.TrimSpace(stringParam(params, "title"))
	description := strings.TrimSpace(stringParam(params, "description"))

	if title == "" {
		return errPayload("Task title cannot be empty")
	}
	if len(title) > MaxTitleLen {
		return errPayload("Task title must be %d characters or less", MaxTitleLen)
	}
	if len(description) > MaxDescriptionLen {
		return errPayload("Description must be %d characters or less", MaxDescriptionLen)
	}

	task, err := r.store.CreateTask(ctx, ownerID, title, description)
	if err != nil {
		return errPayload("Failed to add task: %v", err)
	}

	return map[string]any{
		"id":      task.ID,
		"title":   task.Title,
		"message": "Task '" + task.Title + "' added successfully",
	}
}

func (r *Registry) listTasks(ctx context.Context, ownerID string, params map[string]any) map[string]any {
	status := stringParam(params, "status")

	filter, err := store.ParseTaskFilter(status)
	if err != nil {
		return errPayload("Invalid status '%s'. Use 'all', 'pending', or 'completed'.", status)
	}

	tasks, err := r.store.ListTasks(ctx, ownerID, filter)
	if err != nil {
		return errPayload("Failed to list tasks: %v", err)
	}

	list := make([]map[string]any, 0, len(tasks))
	for _, t := range tasks {
		list = append(list, map[string]any{
			"id":          t.ID,
			"title":       t.Title,
			"description": t.Description,
			"completed":   t.Completed,
			"created_at":  t.CreatedAt.Format(time.RFC3339),
		})
	}

	if len(list) == 0 {
		return map[string]any{
			"count":   0,
			"tasks":   list,
			"message": "No " + string(filter) + " tasks found.",
		}
	}
	return map[string]any{
		"count":   len(list),
		"tasks":   list,
		"message": "Found " + strconv.Itoa(len(list)) + " " + string(filter) + " task(s).",
	}
}

func (r *Registry) completeTask(ctx context.Context, ownerID string, params map[string]any) map[string]any {
	task, errResult := r.resolveTask(ctx, ownerID, params, "title")
	if errResult != nil {
		return errResult
	}

	task, err := r.store.SetTaskCompleted(ctx, ownerID, task.ID, true)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errPayload("Task not found or not owned by you")
		}
		return errPayload("Failed to complete task: %v", err)
	}

	return map[string]any{
		"id":      task.ID,
		"title":   task.Title,
		"message": "Task '" + task.Title + "' marked as complete",
	}
}

func (r *Registry) deleteTask(ctx context.Context, ownerID string, params map[string]any) map[string]any {
	task, errResult := r.resolveTask(ctx, ownerID, params, "title")
	if errResult != nil {
		return errResult
	}

	if err := r.store.DeleteTask(ctx, ownerID, task.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errPayload("Task not found or not owned by you")
		}
		return errPayload("Failed to delete task: %v", err)
	}

	return map[string]any{
		"id":      task.ID,
		"title":   task.Title,
		"message": "Task '" + task.Title + "' deleted",
	}
}

func (r *Registry) updateTask(ctx context.Context, ownerID string, params map[string]any) map[string]any {
	newTitle := strings.TrimSpace(stringParam(params, "new_title"))
	hasNewDescription := hasParam(params, "new_description")

	if newTitle == "" && !hasNewDescription {
		return errPayload("Either new_title or new_description must be provided")
	}
	if len(newTitle) > MaxTitleLen {
		return errPayload("New title must be %d characters or less", MaxTitleLen)
	}

	var titlePtr *string
	if newTitle != "" {
		titlePtr = &newTitle
	}

	var descPtr *string
	if hasNewDescription {
		newDescription := strings.TrimSpace(stringParam(params, "new_description"))
		if len(newDescription) > MaxDescriptionLen {
			return errPayload("Description must be %d characters or less", MaxDescriptionLen)
		}
		descPtr = &newDescription
	}

	task, errResult := r.resolveTask(ctx, ownerID, params, "current_title")
	if errResult != nil {
		return errResult
	}

	task, err := r.store.UpdateTaskFields(ctx, ownerID, task.ID, titlePtr, descPtr)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errPayload("Task not found or not owned by you")
		}
		return errPayload("Failed to update task: %v", err)
	}

	return map[string]any{
		"id":          task.ID,
		"title":       task.Title,
		"description": task.Description,
		"message":     "Task updated successfully",
	}
}

// resolveTask finds the target task from either a task_id or a title
// parameter (titleKey names the latter, since update_task calls it
// current_title). Title matching is a case-insensitive substring match;
// ties resolve to the lowest id. Returns (task, nil) on success or
// (nil, errorPayload) on failure.
func (r *Registry) resolveTask(ctx context.Context, ownerID string, params map[string]any, titleKey string) (*store.Task, map[string]any) {
	if id, ok := intParam(params, "task_id"); ok {
		task, err := r.store.GetTask(ctx, ownerID, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, errPayload("Task not found or not owned by you")
		}
		if err != nil {
			return nil, errPayload("Failed to look up task: %v", err)
		}
		return task, nil
	}

	title := strings.TrimSpace(stringParam(params, titleKey))
	if title == "" {
		return nil, errPayload("Either task_id or %s must be provided", titleKey)
	}

	task, err := r.store.FindTaskByTitle(ctx, ownerID, title)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errPayload("Task not found or not owned by you")
	}
	if err != nil {
		return nil, errPayload("Failed to look up task: %v", err)
	}
	return task, nil
}
