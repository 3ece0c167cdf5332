package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Desarso/chatrelay/encryption"
	"github.com/Desarso/chatrelay/models"
	"github.com/Desarso/chatrelay/sessions"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func (s *Server) handleChat(c *gin.Context) {
	s.streamChat(c, "")
}

func (s *Server) handleChatContinue(c *gin.Context) {
	s.streamChat(c, c.Param("conversation_id"))
}

// streamChat runs one chat turn over an NDJSON response. Failures
// before the first event become plain JSON error responses; once
// streaming has begun, failures ride the stream as terminal error
// events.
func (s *Server) streamChat(c *gin.Context, conversationID string) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{Success: false, Error: "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{Success: false, Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.Timeout)
	defer cancel()

	session := sessions.NewChatSession(conversationID, s.Generator, s.Store, s.Cipher, s.Registry)
	writer := &sessions.NDJSONWriter{Writer: c.Writer, Flusher: c.Writer}

	if err := session.Run(ctx, req, writer); err != nil {
		if writer.Started() {
			// Terminal error event already emitted, or the client is gone.
			return
		}
		status, message := statusForError(err)
		if status == http.StatusInternalServerError {
			s.Logger.Printf("Chat request failed: %v", err)
		}
		c.JSON(status, models.APIResponse{Success: false, Error: message})
	}
}

// wsChatRequest is the message shape clients send over the websocket
// chat channel. ConversationID is empty for a new thread.
type wsChatRequest struct {
	models.ChatRequest
	ConversationID string `json:"conversation_id,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleChatWS carries the same event objects as the NDJSON stream
// over a websocket, one chat turn per inbound message.
func (s *Server) handleChatWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var req wsChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.Logger.Printf("WebSocket read error: %v", err)
			}
			return
		}

		writer := &sessions.WebSocketEventWriter{Conn: conn, Logger: s.Logger, StartTime: time.Now()}

		if err := req.Validate(); err != nil {
			if writeErr := writer.WriteEvent(models.ErrorEvent(err.Error())); writeErr != nil {
				return
			}
			continue
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), s.Timeout)
		session := sessions.NewChatSession(req.ConversationID, s.Generator, s.Store, s.Cipher, s.Registry)
		err := session.Run(ctx, req.ChatRequest, writer)
		cancel()

		if err != nil && !writer.Started() {
			// Pre-stream failure: nothing reached the wire yet, so the
			// terminal error event is still owed for this turn.
			_, message := statusForError(err)
			if writeErr := writer.WriteEvent(models.ErrorEvent(message)); writeErr != nil {
				return
			}
		}
	}
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, sessions.ErrConversationNotFound):
		return http.StatusNotFound, "conversation not found"
	case errors.Is(err, encryption.ErrKeyNotConfigured):
		return http.StatusInternalServerError, "encryption key not configured on server"
	case errors.Is(err, encryption.ErrInvalidKey):
		return http.StatusBadRequest, "invalid encryption key"
	case errors.Is(err, encryption.ErrMalformedPayload):
		return http.StatusBadRequest, "malformed encrypted payload"
	case errors.Is(err, encryption.ErrAuthenticationFailed):
		return http.StatusBadRequest, "decryption failed"
	case errors.Is(err, encryption.ErrNotEnabled):
		return http.StatusBadRequest, "encryption is not enabled"
	case errors.Is(err, sessions.ErrEncryptionRequired):
		return http.StatusBadRequest, "encrypted payload required"
	case errors.Is(err, sessions.ErrInvalidMessage):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
