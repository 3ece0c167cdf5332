package models

import (
	"fmt"
	"strings"
	"time"
)

// Message roles. Anything else is rejected at the input boundary.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MaxMessageLength bounds user message content, measured before encryption.
const MaxMessageLength = 4000

// Reference is a citation source surfaced by grounded generation.
// Index is 1-based and stable within one response; inline citation
// markers like [1][3] refer to it.
type Reference struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Domain  string `json:"domain"`
	Snippet string `json:"snippet,omitempty"`
}

// GroundingSupport maps a span of the final response text to one or
// more references. Offsets are byte offsets into the final text,
// end exclusive.
type GroundingSupport struct {
	StartIndex       int    `json:"start_index"`
	EndIndex         int    `json:"end_index"`
	ReferenceIndices []int  `json:"reference_indices"`
	Text             string `json:"text,omitempty"`
}

// Grounding bundles the metadata attached to a grounded assistant turn.
type Grounding struct {
	References    []Reference        `json:"references,omitempty"`
	SearchQueries []string           `json:"search_queries,omitempty"`
	Supports      []GroundingSupport `json:"grounding_supports,omitempty"`
	Grounded      bool               `json:"grounded"`
}

// Message is one turn in a conversation. Immutable once persisted.
type Message struct {
	ID        string     `json:"message_id,omitempty"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	Grounding *Grounding `json:"grounding,omitempty"`
}

// NewUserMessage builds an unpersisted user turn stamped now.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, CreatedAt: time.Now().UTC()}
}

// NewAssistantMessage builds an unpersisted assistant turn stamped now.
func NewAssistantMessage(content string, grounding *Grounding) Message {
	return Message{Role: RoleAssistant, Content: content, CreatedAt: time.Now().UTC(), Grounding: grounding}
}

// Validate checks the invariants a message must hold after decryption.
func (m Message) Validate() error {
	if m.Role != RoleUser && m.Role != RoleAssistant {
		return fmt.Errorf("invalid message role: %q", m.Role)
	}
	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("message content must not be empty")
	}
	if len(m.Content) > MaxMessageLength {
		return fmt.Errorf("message content exceeds %d characters", MaxMessageLength)
	}
	return nil
}

// GenerationResult is the stable final shape produced by the
// generation adapter once its delta stream is exhausted: the full
// response text plus whatever grounding metadata came back.
type GenerationResult struct {
	Text      string
	Grounding Grounding
}

// Conversation is an ordered, append-only history of messages.
type Conversation struct {
	ID          string    `json:"conversation_id"`
	Title       string    `json:"title"`
	Messages    []Message `json:"messages"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
	Starred     bool      `json:"starred"`
}

// ConversationSummary is the listing projection of a conversation.
type ConversationSummary struct {
	ID           string    `json:"conversation_id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	LastUpdated  time.Time `json:"last_updated"`
	Starred      bool      `json:"starred"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview,omitempty"`
}
