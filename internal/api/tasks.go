package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"taskchat/internal/store"
	"taskchat/internal/tools"
)

type createTaskRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// validateTitle trims and bounds a task title. Returns the cleaned
// title or an error message suitable for the response body.
func validateTitle(title string) (string, string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", "title cannot be empty"
	}
	if len(title) > tools.MaxTitleLen {
		return "", "title must be 200 characters or less"
	}
	return title, ""
}

func taskID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return 0, false
	}
	return id, true
}

func (s *Server) handleListTasks(c *gin.Context) {
	filter, err := store.ParseTaskFilter(c.Query("status"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status; use 'all', 'pending', or 'completed'"})
		return
	}

	tasks, err := s.store.ListTasks(c.Request.Context(), c.GetString(ownerKey), filter)
	if err != nil {
		s.logger.Error("list tasks failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "count": len(tasks)})
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	title, msg := validateTitle(req.Title)
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	description := strings.TrimSpace(req.Description)
	if len(description) > tools.MaxDescriptionLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "description must be 2000 characters or less"})
		return
	}

	task, err := s.store.CreateTask(c.Request.Context(), c.GetString(ownerKey), title, description)
	if err != nil {
		s.logger.Error("create task failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, task)
}

func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	task, err := s.store.GetTask(c.Request.Context(), c.GetString(ownerKey), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if err != nil {
		s.logger.Error("get task failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, task)
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Title == nil && req.Description == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "either title or description must be provided"})
		return
	}

	if req.Title != nil {
		title, msg := validateTitle(*req.Title)
		if msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}
		req.Title = &title
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		if len(description) > tools.MaxDescriptionLen {
			c.JSON(http.StatusBadRequest, gin.H{"error": "description must be 2000 characters or less"})
			return
		}
		req.Description = &description
	}

	task, err := s.store.UpdateTaskFields(c.Request.Context(), c.GetString(ownerKey), id, req.Title, req.Description)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if err != nil {
		s.logger.Error("update task failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, task)
}

func (s *Server) handleCompleteTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	task, err := s.store.SetTaskCompleted(c.Request.Context(), c.GetString(ownerKey), id, true)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if err != nil {
		s.logger.Error("complete task failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, task)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	err := s.store.DeleteTask(c.Request.Context(), c.GetString(ownerKey), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if err != nil {
		s.logger.Error("delete task failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.Status(http.StatusNoContent)
}
