package api

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/Desarso/chatrelay/encryption"
	"github.com/Desarso/chatrelay/middleware"
	"github.com/Desarso/chatrelay/sessions"
	"github.com/Desarso/chatrelay/stores"
	"github.com/gin-gonic/gin"
)

// Server holds the collaborators every handler needs.
type Server struct {
	Store     stores.ConversationStore
	Generator sessions.Generator
	Cipher    *encryption.Cipher
	Registry  *encryption.KeyRegistry
	Timeout   time.Duration
	APIToken  string
	Logger    *log.Logger
}

// NewServer wires a server from its collaborators.
func NewServer(store stores.ConversationStore, generator sessions.Generator, registry *encryption.KeyRegistry, timeout time.Duration, apiToken string) *Server {
	return &Server{
		Store:     store,
		Generator: generator,
		Cipher:    encryption.NewCipher(registry),
		Registry:  registry,
		Timeout:   timeout,
		APIToken:  apiToken,
		Logger:    log.New(os.Stdout, "[API] ", log.LstdFlags),
	}
}

// Router builds the gin engine with all routes and middleware attached.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.Cors())

	router.GET("/health", s.handleHealth)

	api := router.Group("/api")
	api.Use(middleware.Auth(s.APIToken))
	{
		api.POST("/chat", s.handleChat)
		api.POST("/chat/:conversation_id", s.handleChatContinue)
		api.GET("/chat/ws", s.handleChatWS)

		api.GET("/conversations", s.handleListConversations)
		api.GET("/conversations/:conversation_id", s.handleGetConversation)
		api.POST("/conversations/:conversation_id/star", s.handleStarConversation)
		api.PATCH("/conversations/:conversation_id", s.handleRenameConversation)
		api.DELETE("/conversations/:conversation_id", s.handleDeleteConversation)
		api.DELETE("/conversations/nonstarred", s.handleDeleteNonStarred)

		api.GET("/encryption/status", s.handleEncryptionStatus)
		api.POST("/encryption/validate", s.handleValidateKey)
	}

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.Store.Ping(c.Request.Context()); err != nil {
		s.Logger.Printf("Health check store ping failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": "unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
