package sessions

import (
	"context"
	"errors"
	"fmt"

	"github.com/Desarso/chatrelay/encryption"
	"github.com/Desarso/chatrelay/models"
)

const (
	genericStreamError  = "An error occurred while generating the response."
	genericPersistError = "Failed to save the conversation."
)

// Run executes one chat turn against the writer. Errors returned before
// the first event is written map to HTTP status codes at the handler;
// once streaming has begun, failures surface as a terminal error event
// on the stream instead.
func (s *ChatSession) Run(ctx context.Context, req models.ChatRequest, writer EventWriter) error {
	message, err := s.resolveMessage(req)
	if err != nil {
		return err
	}

	var history []models.Message
	newConversation := s.ConversationID == ""
	if !newConversation {
		conv, err := s.Store.Get(ctx, s.ConversationID)
		if err != nil {
			return fmt.Errorf("failed to load conversation: %w", err)
		}
		if conv == nil {
			return ErrConversationNotFound
		}
		history = conv.Messages
	}

	if newConversation {
		if err := s.emit(writer, models.ConversationStartEvent()); err != nil {
			return err
		}
	}

	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	deltaChan, resultChan := s.Generator.Stream(genCtx, message, history)

	var result *models.GenerationResult
	for deltaChan != nil || resultChan != nil {
		select {
		case delta, ok := <-deltaChan:
			if !ok {
				deltaChan = nil
				continue
			}
			event, err := s.chunkEvent(delta, req)
			if err != nil {
				s.Logger.Printf("Error encrypting chunk: %v", err)
				cancel()
				s.emit(writer, models.ErrorEvent(genericStreamError))
				return err
			}
			if err := s.emit(writer, event); err != nil {
				s.Logger.Printf("Client write failed, stopping generation: %v", err)
				cancel()
				return err
			}

		case res, ok := <-resultChan:
			if !ok {
				resultChan = nil
				continue
			}
			result = res

		case <-ctx.Done():
			return s.abort(ctx, writer)
		}
	}

	if ctx.Err() != nil {
		return s.abort(ctx, writer)
	}
	if result == nil {
		s.emit(writer, models.ErrorEvent(genericStreamError))
		return errors.New("generator closed without a result")
	}

	acc := &Accumulator{Store: s.Store, Titler: s.Generator, Logger: s.Logger}
	conversationID, err := acc.Finalize(ctx, s.ConversationID, message, result)
	if err != nil {
		s.Logger.Printf("Error persisting turn: %v", err)
		s.emit(writer, models.ErrorEvent(genericPersistError))
		return err
	}

	return s.emit(writer, models.DoneEvent(conversationID, &result.Grounding))
}

// resolveMessage returns the plaintext message, decrypting first when
// the request carries ciphertext. Strict mode rejects plaintext
// outright whenever server-side encryption is switched on.
func (s *ChatSession) resolveMessage(req models.ChatRequest) (string, error) {
	if req.Encrypted {
		plaintext, err := s.Cipher.Decrypt(models.EncryptedPayload{Data: req.Message, KeyHash: req.KeyHash})
		if err != nil {
			return "", err
		}
		message := string(plaintext)
		if err := models.NewUserMessage(message).Validate(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		return message, nil
	}

	if s.Registry.Enabled() && s.Registry.Mode() == encryption.ModeStrict {
		return "", ErrEncryptionRequired
	}
	return req.Message, nil
}

// chunkEvent wraps one delta, re-encrypting it with the caller's key
// when the request came in encrypted.
func (s *ChatSession) chunkEvent(delta string, req models.ChatRequest) (models.StreamEvent, error) {
	if !req.Encrypted {
		return models.ChunkEvent(delta, false, ""), nil
	}
	payload, err := s.Cipher.Encrypt([]byte(delta), req.KeyHash)
	if err != nil {
		return models.StreamEvent{}, err
	}
	return models.ChunkEvent(payload.Data, true, payload.KeyHash), nil
}

// abort handles a cancelled or timed-out stream: the partial turn is
// never persisted. A timeout still owes the caller a terminal error
// event; a disconnect has no caller left to tell.
func (s *ChatSession) abort(ctx context.Context, writer EventWriter) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		s.Logger.Printf("Request timed out, skipping persistence")
		s.emit(writer, models.ErrorEvent(genericStreamError))
	} else {
		s.Logger.Printf("Client disconnected, skipping persistence")
	}
	return ctx.Err()
}

func (s *ChatSession) emit(writer EventWriter, event models.StreamEvent) error {
	if err := writer.WriteEvent(event); err != nil {
		return err
	}
	writer.Flush()
	return nil
}
