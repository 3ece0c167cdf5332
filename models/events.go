package models

// Stream event types, in emission order: an optional
// conversation_start, zero or more chunks, then exactly one of done
// or error.
const (
	EventConversationStart = "conversation_start"
	EventChunk             = "chunk"
	EventDone              = "done"
	EventError             = "error"
)

// StreamEvent is one newline-delimited JSON object on the chat stream.
// Content carries plaintext or ciphertext depending on Encrypted.
type StreamEvent struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`

	// chunk fields, present when the payload is re-encrypted
	Encrypted bool   `json:"encrypted,omitempty"`
	KeyHash   string `json:"key_hash,omitempty"`

	// done fields
	ConversationID string             `json:"conversation_id,omitempty"`
	References     []Reference        `json:"references,omitempty"`
	SearchQueries  []string           `json:"search_queries,omitempty"`
	Supports       []GroundingSupport `json:"grounding_supports,omitempty"`
	Grounded       bool               `json:"grounded,omitempty"`

	// error field
	Error string `json:"error,omitempty"`
}

// ConversationStartEvent marks the beginning of a brand-new thread.
func ConversationStartEvent() StreamEvent {
	return StreamEvent{Type: EventConversationStart}
}

// ChunkEvent wraps one text delta, already encrypted when keyHash is set.
func ChunkEvent(content string, encrypted bool, keyHash string) StreamEvent {
	return StreamEvent{Type: EventChunk, Content: content, Encrypted: encrypted, KeyHash: keyHash}
}

// DoneEvent is the terminal success event. Grounding fields are only
// attached when the answer was grounded.
func DoneEvent(conversationID string, grounding *Grounding) StreamEvent {
	ev := StreamEvent{Type: EventDone, ConversationID: conversationID}
	if grounding != nil && grounding.Grounded {
		ev.References = grounding.References
		ev.SearchQueries = grounding.SearchQueries
		ev.Supports = grounding.Supports
		ev.Grounded = true
	}
	return ev
}

// ErrorEvent is the terminal failure event. The message must already
// be user-safe; raw internal errors never reach the wire.
func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Type: EventError, Error: message}
}
