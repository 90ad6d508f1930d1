package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Task is a single TODO item. Tasks are addressable only in combination
// with their owner id; no query in this file matches on id or title alone.
type Task struct {
	ID          int64     `json:"id"`
	OwnerID     string    `json:"-"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskFilter selects tasks by completion state.
type TaskFilter string

const (
	FilterAll       TaskFilter = "all"
	FilterPending   TaskFilter = "pending"
	FilterCompleted TaskFilter = "completed"
)

// ParseTaskFilter validates a status string. The empty string means all.
func ParseTaskFilter(s string) (TaskFilter, error) {
	switch TaskFilter(s) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterPending:
		return FilterPending, nil
	case FilterCompleted:
		return FilterCompleted, nil
	default:
		return "", fmt.Errorf("invalid status %q", s)
	}
}

const taskColumns = "id, owner_id, title, description, completed, created_at, updated_at"

func scanTask(row interface{ Scan(...any) error }) (*Task, error) {
	var t Task
	var desc sql.NullString
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &desc, &t.Completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Description = desc.String
	return &t, nil
}

// CreateTask inserts a new task owned by ownerID. Title and description
// are stored as given; length validation happens at the boundaries.
func (s *Store) CreateTask(ctx context.Context, ownerID, title, description string) (*Task, error) {
	now := time.Now().UTC()

	var desc any
	if description != "" {
		desc = description
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (owner_id, title, description, completed, created_at, updated_at)
		VALUES (?, ?, ?, FALSE, ?, ?)
	`, ownerID, title, desc, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("task id: %w", err)
	}

	return &Task{
		ID:          id,
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ListTasks returns the owner's tasks matching filter, ordered by id.
// Returns an empty slice (never an error) when none match.
func (s *Store) ListTasks(ctx context.Context, ownerID string, filter TaskFilter) ([]Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE owner_id = ?"
	switch filter {
	case FilterPending:
		query += " AND completed = FALSE"
	case FilterCompleted:
		query += " AND completed = TRUE"
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// GetTask returns the task with the given id if it belongs to ownerID.
func (s *Store) GetTask(ctx context.Context, ownerID string, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ? AND owner_id = ?",
		id, ownerID)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// FindTaskByTitle returns the owner's task whose title contains substr,
// case-insensitively. When several match, the lowest id wins; callers
// that need precision should address tasks by id instead.
func (s *Store) FindTaskByTitle(ctx context.Context, ownerID, substr string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE owner_id = ? AND LOWER(title) LIKE '%' || LOWER(?) || '%'
		ORDER BY id ASC LIMIT 1
	`, ownerID, substr)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	return t, nil
}

// SetTaskCompleted updates the completion flag of the owner's task.
func (s *Store) SetTaskCompleted(ctx context.Context, ownerID string, id int64, completed bool) (*Task, error) {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET completed = ?, updated_at = ? WHERE id = ? AND owner_id = ?",
		completed, now, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	return s.GetTask(ctx, ownerID, id)
}

// UpdateTaskFields updates the title and/or description of the owner's
// task. Nil pointers leave the corresponding field untouched; a non-nil
// empty description clears the field.
func (s *Store) UpdateTaskFields(ctx context.Context, ownerID string, id int64, newTitle, newDescription *string) (*Task, error) {
	if newTitle == nil && newDescription == nil {
		return s.GetTask(ctx, ownerID, id)
	}

	now := time.Now().UTC()
	query := "UPDATE tasks SET updated_at = ?"
	args := []any{now}

	if newTitle != nil {
		query += ", title = ?"
		args = append(args, *newTitle)
	}
	if newDescription != nil {
		query += ", description = ?"
		if *newDescription == "" {
			args = append(args, nil)
		} else {
			args = append(args, *newDescription)
		}
	}

	query += " WHERE id = ? AND owner_id = ?"
	args = append(args, id, ownerID)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	return s.GetTask(ctx, ownerID, id)
}

// DeleteTask removes the owner's task with the given id.
func (s *Store) DeleteTask(ctx context.Context, ownerID string, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM tasks WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
