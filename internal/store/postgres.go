package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatmesh-io/chatmesh/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetChat retrieves a chat and its member list. Returns nil when the chat
// does not exist.
func (s *PostgresStore) GetChat(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	chat := &models.Chat{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, admin_id, created_at
		FROM chats WHERE id = $1
	`, id).Scan(
		&chat.ID,
		&chat.Name,
		&chat.AdminID,
		&chat.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
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
func (s *PostgresStore) GetChatMemberIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id FROM chat_members WHERE chat_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []uuid.UUID
	for rows.Next() {
		var userID uuid.UUID
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		members = append(members, userID)
	}
	return members, rows.Err()
}

// AppendMessage persists one chat message.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, chat_id, sender_id, sub_type, body, sticker_ref, reaction_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, msg.ID, msg.ChatID, msg.SenderID, msg.SubType, msg.Body, msg.StickerRef, msg.ReactionRef, msg.CreatedAt)
	return err
}

// GetUser retrieves a user by id. Returns nil when the user does not exist.
func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, last_seen_at, created_at
		FROM users WHERE id = $1
	`, id).Scan(
		&user.ID,
		&user.Name,
		&user.LastSeenAt,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// UpdateLastSeen updates the user's last-seen timestamp.
func (s *PostgresStore) UpdateLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET last_seen_at = $2 WHERE id = $1
	`, id, at)
	return err
}
