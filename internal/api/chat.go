package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taskchat/internal/chat"
	"taskchat/internal/llm"
	"taskchat/internal/store"
)

// maxMessageLen bounds inbound chat messages.
const maxMessageLen = 5000

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message" binding:"required"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message cannot be empty"})
		return
	}
	if len(message) > maxMessageLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message must be 5000 characters or less"})
		return
	}

	resp, err := s.orchestrator.HandleChat(c.Request.Context(), c.GetString(ownerKey), req.ConversationID, message)
	switch {
	case errors.Is(err, chat.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.Is(err, llm.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI service temporarily unavailable. Please try again."})
	case err != nil:
		s.logger.Error("chat request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "an error occurred while processing your request"})
	default:
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) handleListConversations(c *gin.Context) {
	convs, err := s.store.ListConversations(c.Request.Context(), c.GetString(ownerKey))
	if err != nil {
		s.logger.Error("list conversations failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs, "count": len(convs)})
}

// conversationPageSize caps how much history one read returns.
const conversationPageSize = 200

func (s *Server) handleConversationMessages(c *gin.Context) {
	ownerID := c.GetString(ownerKey)
	convID := c.Param("id")

	if _, err := s.store.GetConversation(c.Request.Context(), ownerID, convID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		s.logger.Error("get conversation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	messages, err := s.store.LoadRecent(c.Request.Context(), convID, ownerID, conversationPageSize)
	if err != nil {
		s.logger.Error("load messages failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages, "count": len(messages)})
}
