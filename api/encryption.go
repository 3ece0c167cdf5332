package api

import (
	"errors"
	"net/http"

	"github.com/Desarso/chatrelay/encryption"
	"github.com/Desarso/chatrelay/models"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleEncryptionStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"enabled":    s.Registry.Enabled(),
		"configured": s.Registry.Configured(),
		"mode":       s.Registry.Mode(),
	})
}

// handleValidateKey tells a client whether its key hash matches the
// server's configured key, without ever exposing the configured hash.
func (s *Server) handleValidateKey(c *gin.Context) {
	var req models.KeyValidationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{Success: false, Error: "invalid request body"})
		return
	}

	if !s.Registry.Enabled() {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": "encryption is not enabled"})
		return
	}

	err := s.Registry.Validate(req.KeyHash)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"valid": true})
	case errors.Is(err, encryption.ErrKeyNotConfigured):
		s.Logger.Printf("Key validation requested but no key hash is configured")
		c.JSON(http.StatusInternalServerError, models.APIResponse{Success: false, Error: "encryption key not configured on server"})
	default:
		c.JSON(http.StatusOK, gin.H{"valid": false})
	}
}
