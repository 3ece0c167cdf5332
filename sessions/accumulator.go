package sessions

import (
	"context"
	"fmt"
	"log"

	"github.com/Desarso/chatrelay/models"
	"github.com/Desarso/chatrelay/stores"
)

// Titler names a new conversation from its first message.
type Titler interface {
	GenerateTitle(ctx context.Context, firstMessage string) string
}

// Accumulator turns a completed generation into durable state: both
// halves of the turn land in the store together, never just one.
type Accumulator struct {
	Store  stores.ConversationStore
	Titler Titler
	Logger *log.Logger
}

// Finalize writes the completed turn. New conversations get a generated
// title and a fresh id; continuations append the user and assistant
// messages in a single transaction. Returns the conversation id the
// turn landed in.
func (a *Accumulator) Finalize(ctx context.Context, conversationID, userText string, result *models.GenerationResult) (string, error) {
	userMsg := models.NewUserMessage(userText)

	var grounding *models.Grounding
	if result.Grounding.Grounded {
		g := result.Grounding
		grounding = &g
	}
	assistantMsg := models.NewAssistantMessage(result.Text, grounding)

	if conversationID == "" {
		title := a.Titler.GenerateTitle(ctx, userText)
		id, err := a.Store.Create(ctx, userMsg, assistantMsg, title)
		if err != nil {
			return "", fmt.Errorf("failed to create conversation: %w", err)
		}
		a.Logger.Printf("Created conversation %s (%q)", id, title)
		return id, nil
	}

	ok, err := a.Store.Append(ctx, conversationID, userMsg, assistantMsg)
	if err != nil {
		return "", fmt.Errorf("failed to append to conversation %s: %w", conversationID, err)
	}
	if !ok {
		return "", ErrConversationNotFound
	}
	return conversationID, nil
}
