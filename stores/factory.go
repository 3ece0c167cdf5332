package stores

import (
	"fmt"
)

// NewStore creates a conversation store based on the configuration.
func NewStore(storeType, connection string) (ConversationStore, error) {
	switch storeType {
	case "sqlite":
		return NewSQLiteStore(connection)
	case "postgres":
		return NewPostgresStore(connection)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeType)
	}
}

// NewSQLiteStoreDefault creates a SQLite store with default settings.
func NewSQLiteStoreDefault() (ConversationStore, error) {
	return NewSQLiteStore("chatrelay.sqlite")
}
