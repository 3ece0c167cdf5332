package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/Desarso/chatrelay/encryption"
	"github.com/Desarso/chatrelay/models"
	"github.com/Desarso/chatrelay/stores"
	"github.com/gorilla/websocket"
)

var (
	// ErrConversationNotFound is returned before any event is written
	// when a continuation targets an id the store has never seen.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrEncryptionRequired is returned when the server runs in strict
	// encryption mode and the request carries a plaintext message.
	ErrEncryptionRequired = errors.New("encrypted payload required")

	// ErrInvalidMessage is returned when a decrypted message fails the
	// same length checks a plaintext message is held to.
	ErrInvalidMessage = errors.New("invalid message")
)

// Generator produces the assistant side of a chat turn. Deltas arrive
// on the first channel in order; after it closes, exactly one result
// arrives on the second.
type Generator interface {
	Stream(ctx context.Context, message string, history []models.Message) (<-chan string, <-chan *models.GenerationResult)
	GenerateTitle(ctx context.Context, firstMessage string) string
}

// EventWriter delivers stream events to the caller.
type EventWriter interface {
	WriteEvent(event models.StreamEvent) error
	Flush()
}

// ChatSession drives one chat turn: decrypt, load history, stream the
// generated reply, persist the completed turn.
type ChatSession struct {
	Generator      Generator
	Store          stores.ConversationStore
	Cipher         *encryption.Cipher
	Registry       *encryption.KeyRegistry
	ConversationID string
	Logger         *log.Logger
}

// NDJSONWriter frames events as newline-delimited JSON on an HTTP
// response, flushing after every event so deltas reach the client as
// they are generated. Stream headers are written lazily on the first
// event, which lets the handler fall back to a plain JSON error
// response when a request fails before streaming begins.
type NDJSONWriter struct {
	Writer  http.ResponseWriter
	Flusher http.Flusher
	started bool
}

func (w *NDJSONWriter) WriteEvent(event models.StreamEvent) error {
	if !w.started {
		header := w.Writer.Header()
		header.Set("Content-Type", "application/x-ndjson")
		header.Set("Cache-Control", "no-cache")
		header.Set("Connection", "keep-alive")
		header.Set("X-Accel-Buffering", "no")
		w.started = true
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = w.Writer.Write(append(data, '\n'))
	return err
}

// Started reports whether any event has been written to the response.
func (w *NDJSONWriter) Started() bool {
	return w.started
}

func (w *NDJSONWriter) Flush() {
	if w.Flusher != nil {
		w.Flusher.Flush()
	}
}

// WebSocketEventWriter frames events as JSON messages on a WebSocket
// connection. Writes are serialized; gorilla allows only one concurrent
// writer per connection.
type WebSocketEventWriter struct {
	Conn             *websocket.Conn
	Logger           *log.Logger
	StartTime        time.Time
	started          bool
	firstTokenLogged bool
	mu               sync.Mutex
}

func (w *WebSocketEventWriter) WriteEvent(event models.StreamEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.started = true
	if event.Type == models.EventChunk && !w.firstTokenLogged && !w.StartTime.IsZero() {
		w.Logger.Printf("Time to first token: %v", time.Since(w.StartTime))
		w.firstTokenLogged = true
	}
	return w.Conn.WriteJSON(event)
}

func (w *WebSocketEventWriter) Flush() {}

// Started reports whether any event has been written this turn.
func (w *WebSocketEventWriter) Started() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}
