package sessions

import (
	"fmt"
	"log"
	"os"

	"github.com/Desarso/chatrelay/encryption"
	"github.com/Desarso/chatrelay/stores"
)

// NewChatSession creates a session for one chat turn. An empty
// conversationID starts a new thread.
func NewChatSession(conversationID string, generator Generator, store stores.ConversationStore, cipher *encryption.Cipher, registry *encryption.KeyRegistry) *ChatSession {
	label := conversationID
	if label == "" {
		label = "new"
	}
	logger := log.New(os.Stdout, fmt.Sprintf("[Chat %s] ", label), log.LstdFlags)

	return &ChatSession{
		Generator:      generator,
		Store:          store,
		Cipher:         cipher,
		Registry:       registry,
		ConversationID: conversationID,
		Logger:         logger,
	}
}
