package stores

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/Desarso/chatrelay/models"
)

// Message is one persisted turn of a conversation.
type Message struct {
	gorm.Model
	MessageID      string `gorm:"uniqueIndex;not null"`
	ConversationID string `gorm:"index;not null"`
	Sequence       int    `gorm:"not null"`
	Role           string `gorm:"not null"` // "user", "assistant"
	Content        string `gorm:"type:text;not null"`
	// GroundingJSON stores the JSON marshaled grounding metadata for
	// assistant turns; empty for user turns and ungrounded answers.
	GroundingJSON string `gorm:"type:json"`
}

// Conversation holds metadata for a chat conversation.
type Conversation struct {
	gorm.Model
	ConversationID string    `gorm:"uniqueIndex;not null"`
	Title          string    `gorm:"type:text"`
	Starred        bool      `gorm:"default:false;index"`
	MessageCount   int       `gorm:"default:0"`
	Messages       []Message `gorm:"foreignKey:ConversationID;references:ConversationID"`
}

// ConversationStore abstracts conversation persistence. Get, Append,
// Star, Rename and Delete signal a missing conversation with a
// definite not-found value, never an error.
//
// Append writes the user turn, the assistant turn and the
// last-updated bump in a single transaction, computing sequence
// numbers inside it: readers observe both new messages or neither,
// and concurrent appends to one conversation serialize at the
// database.
type ConversationStore interface {
	Get(ctx context.Context, conversationID string) (*models.Conversation, error)
	Create(ctx context.Context, userMsg, assistantMsg models.Message, title string) (string, error)
	Append(ctx context.Context, conversationID string, userMsg, assistantMsg models.Message) (bool, error)
	List(ctx context.Context, limit, offset int) ([]models.ConversationSummary, error)
	Star(ctx context.Context, conversationID string, starred bool) (bool, error)
	Rename(ctx context.Context, conversationID, title string) (bool, error)
	Delete(ctx context.Context, conversationID string) (bool, error)
	DeleteAllNonStarred(ctx context.Context) (int64, error)
	DeleteNonStarredOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	Connect() error
	Close() error
	Ping(ctx context.Context) error
}

// toRecord converts an API message to its persisted form.
func toRecord(conversationID string, seq int, msg models.Message) Message {
	rec := Message{
		MessageID:      msg.ID,
		ConversationID: conversationID,
		Sequence:       seq,
		Role:           msg.Role,
		Content:        msg.Content,
	}
	if msg.Grounding != nil {
		data, err := json.Marshal(msg.Grounding)
		if err != nil {
			log.Printf("Warning: failed to marshal grounding for message %s: %v", msg.ID, err)
		} else {
			rec.GroundingJSON = string(data)
		}
	}
	return rec
}

// fromRecord converts a persisted message back to its API form.
func fromRecord(rec Message) models.Message {
	msg := models.Message{
		ID:        rec.MessageID,
		Role:      rec.Role,
		Content:   rec.Content,
		CreatedAt: rec.CreatedAt,
	}
	if rec.GroundingJSON != "" && rec.GroundingJSON != "null" {
		var grounding models.Grounding
		if err := json.Unmarshal([]byte(rec.GroundingJSON), &grounding); err != nil {
			log.Printf("Warning: failed to unmarshal grounding for message %s: %v", rec.MessageID, err)
		} else {
			msg.Grounding = &grounding
		}
	}
	return msg
}

// summarize builds the listing projection. Preview is the first 100
// bytes of the last message, matching the conversations API.
func summarize(conv Conversation, lastContent string) models.ConversationSummary {
	preview := lastContent
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return models.ConversationSummary{
		ID:           conv.ConversationID,
		Title:        conv.Title,
		CreatedAt:    conv.CreatedAt,
		LastUpdated:  conv.UpdatedAt,
		Starred:      conv.Starred,
		MessageCount: conv.MessageCount,
		Preview:      preview,
	}
}
