package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Desarso/chatrelay/models"
)

// PostgresStore implements ConversationStore for PostgreSQL databases
type PostgresStore struct {
	db  *gorm.DB
	dsn string
}

// NewPostgresStore creates a new PostgreSQL store and connects
// immediately.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	store := &PostgresStore{dsn: dsn}
	if err := store.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}
	return store, nil
}

// Connect establishes a connection to the PostgreSQL database
func (s *PostgresStore) Connect() error {
	db, err := gorm.Open(postgres.Open(s.dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	s.db = db

	// Auto-migrate the schema
	if err := s.db.AutoMigrate(&Conversation{}, &Message{}); err != nil {
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.PingContext(ctx)
}

// Get returns a conversation with its messages in sequence order, or
// nil when the id is unknown.
func (s *PostgresStore) Get(ctx context.Context, conversationID string) (*models.Conversation, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var conv Conversation
	err := s.db.WithContext(ctx).Where("conversation_id = ?", conversationID).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversation: %w", err)
	}

	var recs []Message
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("sequence ASC").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	msgs := make([]models.Message, len(recs))
	for i, rec := range recs {
		msgs[i] = fromRecord(rec)
	}

	return &models.Conversation{
		ID:          conv.ConversationID,
		Title:       conv.Title,
		Messages:    msgs,
		CreatedAt:   conv.CreatedAt,
		LastUpdated: conv.UpdatedAt,
		Starred:     conv.Starred,
	}, nil
}

// Create persists a new conversation seeded with the first user and
// assistant turns in one transaction and returns its id.
func (s *PostgresStore) Create(ctx context.Context, userMsg, assistantMsg models.Message, title string) (string, error) {
	if s.db == nil {
		return "", fmt.Errorf("database connection is nil")
	}

	conversationID := uuid.NewString()
	ensureMessageID(&userMsg)
	ensureMessageID(&assistantMsg)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv := Conversation{
			ConversationID: conversationID,
			Title:          title,
			MessageCount:   2,
		}
		if err := tx.Create(&conv).Error; err != nil {
			return fmt.Errorf("failed to create conversation record: %w", err)
		}

		first := toRecord(conversationID, 1, userMsg)
		second := toRecord(conversationID, 2, assistantMsg)
		if err := tx.Create(&first).Error; err != nil {
			return fmt.Errorf("failed to create user message record: %w", err)
		}
		if err := tx.Create(&second).Error; err != nil {
			return fmt.Errorf("failed to create assistant message record: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return conversationID, nil
}

// Append adds a user and assistant turn to an existing conversation.
// Returns false when the conversation does not exist. The conversation
// row is locked FOR UPDATE so concurrent appends to the same id
// serialize instead of racing on sequence numbers.
func (s *PostgresStore) Append(ctx context.Context, conversationID string, userMsg, assistantMsg models.Message) (bool, error) {
	if s.db == nil {
		return false, fmt.Errorf("database connection is nil")
	}

	ensureMessageID(&userMsg)
	ensureMessageID(&assistantMsg)

	found := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv Conversation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("conversation_id = ?", conversationID).
			First(&conv).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to fetch conversation: %w", err)
		}
		found = true

		var count int64
		if err := tx.Model(&Message{}).Where("conversation_id = ?", conversationID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count existing messages: %w", err)
		}

		first := toRecord(conversationID, int(count)+1, userMsg)
		second := toRecord(conversationID, int(count)+2, assistantMsg)
		if err := tx.Create(&first).Error; err != nil {
			return fmt.Errorf("failed to create user message record: %w", err)
		}
		if err := tx.Create(&second).Error; err != nil {
			return fmt.Errorf("failed to create assistant message record: %w", err)
		}

		// Bumps updated_at as a side effect, keeping last-updated fresh.
		if err := tx.Model(&Conversation{}).
			Where("conversation_id = ?", conversationID).
			Update("message_count", int(count)+2).Error; err != nil {
			return fmt.Errorf("failed to update conversation message count: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	return found, nil
}

// List returns conversation summaries ordered by last update,
// newest first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]models.ConversationSummary, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var convs []Conversation
	if err := s.db.WithContext(ctx).
		Order("updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch conversations: %w", err)
	}

	summaries := make([]models.ConversationSummary, len(convs))
	for i, conv := range convs {
		var last Message
		lastContent := ""
		err := s.db.WithContext(ctx).
			Where("conversation_id = ?", conv.ConversationID).
			Order("sequence DESC").
			First(&last).Error
		if err == nil {
			lastContent = last.Content
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to fetch last message: %w", err)
		}
		summaries[i] = summarize(conv, lastContent)
	}

	return summaries, nil
}

// Star sets the starred flag. Returns false when the id is unknown.
func (s *PostgresStore) Star(ctx context.Context, conversationID string, starred bool) (bool, error) {
	return s.updateField(ctx, conversationID, "starred", starred)
}

// Rename sets a new title. Returns false when the id is unknown.
func (s *PostgresStore) Rename(ctx context.Context, conversationID, title string) (bool, error) {
	return s.updateField(ctx, conversationID, "title", title)
}

func (s *PostgresStore) updateField(ctx context.Context, conversationID, column string, value interface{}) (bool, error) {
	if s.db == nil {
		return false, fmt.Errorf("database connection is nil")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&Conversation{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check for conversation: %w", err)
	}
	if count == 0 {
		return false, nil
	}

	if err := s.db.WithContext(ctx).Model(&Conversation{}).
		Where("conversation_id = ?", conversationID).
		Update(column, value).Error; err != nil {
		return false, fmt.Errorf("failed to update conversation: %w", err)
	}
	return true, nil
}

// Delete removes a conversation and its messages. Returns false when
// the id is unknown.
func (s *PostgresStore) Delete(ctx context.Context, conversationID string) (bool, error) {
	if s.db == nil {
		return false, fmt.Errorf("database connection is nil")
	}

	found := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("conversation_id = ?", conversationID).Delete(&Conversation{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete conversation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		found = true

		if err := tx.Where("conversation_id = ?", conversationID).Delete(&Message{}).Error; err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// DeleteAllNonStarred removes every conversation without the starred
// flag and returns how many were deleted.
func (s *PostgresStore) DeleteAllNonStarred(ctx context.Context) (int64, error) {
	return s.deleteNonStarred(ctx, time.Time{})
}

// DeleteNonStarredOlderThan removes non-starred conversations whose
// last update is before the cutoff and returns how many were deleted.
func (s *PostgresStore) DeleteNonStarredOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.deleteNonStarred(ctx, cutoff)
}

func (s *PostgresStore) deleteNonStarred(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}

	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&Conversation{}).Where("starred = ?", false)
		if !cutoff.IsZero() {
			query = query.Where("updated_at < ?", cutoff)
		}

		var convs []Conversation
		if err := query.Find(&convs).Error; err != nil {
			return fmt.Errorf("failed to fetch non-starred conversations: %w", err)
		}
		if len(convs) == 0 {
			return nil
		}

		ids := make([]string, len(convs))
		for i, conv := range convs {
			ids[i] = conv.ConversationID
		}

		if err := tx.Where("conversation_id IN ?", ids).Delete(&Message{}).Error; err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		res := tx.Where("conversation_id IN ?", ids).Delete(&Conversation{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete conversations: %w", res.Error)
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
