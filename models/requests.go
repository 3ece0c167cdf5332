package models

import (
	"fmt"
	"strings"
)

// ChatRequest is the inbound body for starting or continuing a chat.
// When Encrypted is set, Message carries the base64 payload of an
// EncryptedPayload and KeyHash names the key it was sealed under;
// otherwise Message is plaintext.
type ChatRequest struct {
	Message   string `json:"message" binding:"required"`
	Encrypted bool   `json:"encrypted"`
	KeyHash   string `json:"key_hash,omitempty"`
}

// Validate applies the checks that can run before any decryption.
// Length is only enforceable here for plaintext content; ciphertext
// length says nothing about the decrypted size, which is re-checked
// after decryption.
func (r ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return fmt.Errorf("message is required")
	}
	if !r.Encrypted && len(r.Message) > MaxMessageLength {
		return fmt.Errorf("message exceeds %d characters", MaxMessageLength)
	}
	if r.Encrypted && r.KeyHash == "" {
		return fmt.Errorf("key_hash is required for encrypted messages")
	}
	return nil
}

// EncryptedPayload is the wire representation of ciphertext:
// base64(12-byte nonce || ciphertext || 16-byte GCM tag), paired with
// the key-identifier the client encrypted under.
type EncryptedPayload struct {
	Data    string `json:"content"`
	KeyHash string `json:"key_hash"`
}

// RenameRequest renames a conversation.
type RenameRequest struct {
	Title string `json:"title" binding:"required"`
}

// StarRequest stars or unstars a conversation.
type StarRequest struct {
	Starred bool `json:"starred"`
}

// KeyValidationRequest asks the server whether a key hash matches its
// configured key.
type KeyValidationRequest struct {
	KeyHash string `json:"key_hash" binding:"required"`
}

// APIResponse is the generic non-streaming response envelope.
type APIResponse struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// ConversationList wraps a page of conversation summaries.
type ConversationList struct {
	Conversations []ConversationSummary `json:"conversations"`
	Total         int                   `json:"total"`
	HasMore       bool                  `json:"has_more"`
}
