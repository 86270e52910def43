package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/chatmesh-io/chatmesh/internal/models"
)

// DataStore defines the persistence contract the pipeline consumes.
// Both PostgresStore and SQLiteStore implement this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Chat operations
	GetChat(ctx context.Context, id uuid.UUID) (*models.Chat, error)
	GetChatMemberIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
	AppendMessage(ctx context.Context, msg *models.ChatMessage) error

	// User operations
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error
}
