// Package api implements the HTTP boundary: authentication routes,
// owner-scoped task CRUD, and the chat endpoint.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"taskchat/internal/auth"
	"taskchat/internal/buildinfo"
	"taskchat/internal/chat"
	"taskchat/internal/store"
)

// ownerKey is the gin context key holding the verified owner id.
const ownerKey = "owner_id"

// Server is the HTTP API server.
type Server struct {
	address      string
	port         int
	store        *store.Store
	orchestrator *chat.Orchestrator
	tokens       *auth.TokenIssuer
	logger       *slog.Logger
	server       *http.Server
}

// NewServer creates a new API server.
func NewServer(address string, port int, st *store.Store, orch *chat.Orchestrator, tokens *auth.TokenIssuer, logger *slog.Logger) *Server {
	return &Server{
		address:      address,
		port:         port,
		store:        st,
		orchestrator: orch,
		tokens:       tokens,
		logger:       logger,
	}
}

// Router builds the gin engine with all routes registered. Exposed so
// tests can drive the full middleware stack through httptest.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.withLogging(), corsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "build": buildinfo.Info()})
	})

	authRoutes := router.Group("/api/auth")
	{
		authRoutes.POST("/signup", s.handleSignup)
		authRoutes.POST("/login", s.handleLogin)
		authRoutes.GET("/verify", s.requireAuth, s.handleVerify)
	}

	owned := router.Group("/api/:user_id", s.requireAuth, s.requireOwner)
	{
		owned.GET("/tasks", s.handleListTasks)
		owned.POST("/tasks", s.handleCreateTask)
		owned.GET("/tasks/:id", s.handleGetTask)
		owned.PUT("/tasks/:id", s.handleUpdateTask)
		owned.PATCH("/tasks/:id/complete", s.handleCompleteTask)
		owned.DELETE("/tasks/:id", s.handleDeleteTask)

		owned.POST("/chat", s.handleChat)
		owned.GET("/conversations", s.handleListConversations)
		owned.GET("/conversations/:id/messages", s.handleConversationMessages)
	}

	return router
}

// Start runs the server until it fails or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // model round trips can be slow
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requireAuth verifies the bearer token and stores the asserted owner
// id on the request context.
func (s *Server) requireAuth(c *gin.Context) {
	const prefix = "Bearer "

	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, prefix) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}

	ownerID, err := s.tokens.Verify(strings.TrimPrefix(header, prefix))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	c.Set(ownerKey, ownerID)
	c.Next()
}

// requireOwner rejects requests whose path user id differs from the
// token's owner id. Every handler below this middleware may trust the
// path parameter.
func (s *Server) requireOwner(c *gin.Context) {
	if c.Param("user_id") != c.GetString(ownerKey) {
		s.logger.Warn("owner mismatch",
			"path_user", c.Param("user_id"),
			"token_user", c.GetString(ownerKey),
		)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user ID in path does not match authenticated user"})
		return
	}
	c.Next()
}
