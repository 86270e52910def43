package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/chatmesh-io/chatmesh/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the development
// fallback when no DATABASE_URL is configured.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/chatmesh.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/chatmesh.db"
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		last_seen_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chats (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		admin_id TEXT NOT NULL REFERENCES users(id),
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chat_members (
		chat_id TEXT NOT NULL REFERENCES chats(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		PRIMARY KEY (chat_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL REFERENCES chats(id),
		sender_id TEXT NOT NULL REFERENCES users(id),
		sub_type TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		sticker_ref TEXT NOT NULL DEFAULT '',
		reaction_ref TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_messages_chat_created ON messages(chat_id, created_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetChat retrieves a chat and its member list. Returns nil when the chat
// does not exist.
func (s *SQLiteStore) GetChat(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	chat := &models.Chat{}
	var chatID, adminID string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, admin_id, created_at
		FROM chats WHERE id = ?
	`, id.String()).Scan(&chatID, &chat.Name, &adminID, &chat.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if chat.ID, err = uuid.Parse(chatID); err != nil {
		return nil, err
	}
	if chat.AdminID, err = uuid.Parse(adminID); err != nil {
		return nil, err
	}

	members, err := s.GetChatMemberIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	chat.MemberIDs = members
	return chat, nil
}

// GetChatMemberIDs retrieves the member user ids of a chat.
func (s *SQLiteStore) GetChatMemberIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM chat_members WHERE chat_id = ?
	`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		members = append(members, userID)
	}
	return members, rows.Err()
}

// AppendMessage persists one chat message.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, sender_id, sub_type, body, sticker_ref, reaction_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.ChatID.String(), msg.SenderID.String(), msg.SubType, msg.Body, msg.StickerRef, msg.ReactionRef, msg.CreatedAt)
	return err
}

// GetUser retrieves a user by id. Returns nil when the user does not exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	var rawID string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, last_seen_at, created_at
		FROM users WHERE id = ?
	`, id.String()).Scan(&rawID, &user.Name, &user.LastSeenAt, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if user.ID, err = uuid.Parse(rawID); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateLastSeen updates the user's last-seen timestamp.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET last_seen_at = ? WHERE id = ?
	`, at, id.String())
	return err
}
