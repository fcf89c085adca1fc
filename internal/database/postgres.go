package database

import (
	"context"
	"errors"
	"fmt"

	"chat-engine/internal/models"
	"chat-engine/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresDB struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresDB)(nil)

func NewPostgresDB(databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

// storeErr wraps transient persistence failures so callers can match them
// with errors.Is(err, models.ErrStoreUnavailable).
func storeErr(err error) error {
	return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
}

// User store

func (db *PostgresDB) CreateUser(ctx context.Context, username, nickname, passwordHash string) (*models.User, error) {
	query := `
		INSERT INTO users (username, nickname, password_hash, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, username, nickname, created_at`

	user := &models.User{PasswordHash: passwordHash}
	err := db.pool.QueryRow(ctx, query, username, nickname, passwordHash).Scan(
		&user.ID, &user.Username, &user.Nickname, &user.CreatedAt,
	)
	if err != nil {
		return nil, storeErr(err)
	}

	return user, nil
}

func (db *PostgresDB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT id, username, nickname, password_hash, created_at FROM users WHERE username = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.Nickname, &user.PasswordHash, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}

	return user, nil
}

func (db *PostgresDB) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	query := `SELECT id, username, nickname, created_at FROM users WHERE id = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Username, &user.Nickname, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}

	return user, nil
}

// Chat store

func (db *PostgresDB) GetChatByID(ctx context.Context, id int) (*models.Chat, error) {
	query := `SELECT id, name, is_group, COALESCE(owner_id, 0), created_at FROM chats WHERE id = $1`

	chat := &models.Chat{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&chat.ID, &chat.Name, &chat.IsGroup, &chat.OwnerID, &chat.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrChatNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}

	return chat, nil
}

// directChatQuery finds non-group chats containing exactly the given pair,
// earliest created first so a duplicate produced by a historical race always
// resolves to the same record.
const directChatQuery = `
	SELECT c.id
	FROM chats c
	JOIN chat_members m ON m.chat_id = c.id
	WHERE c.is_group = false AND m.user_id IN ($1, $2)
	GROUP BY c.id, c.created_at
	HAVING COUNT(DISTINCT m.user_id) = 2
	ORDER BY c.created_at ASC, c.id ASC
	LIMIT 1`

func (db *PostgresDB) DirectChatBetween(ctx context.Context, userA, userB int) (int, bool, error) {
	var chatID int
	err := db.pool.QueryRow(ctx, directChatQuery, userA, userB).Scan(&chatID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, storeErr(err)
	}
	return chatID, true, nil
}

func (db *PostgresDB) CreateDirectChat(ctx context.Context, userA, userB int) (int, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, storeErr(err)
	}
	defer tx.Rollback(ctx)

	// Re-check inside the transaction; a concurrent creation wins.
	var existing int
	err = tx.QueryRow(ctx, directChatQuery, userA, userB).Scan(&existing)
	if err == nil {
		return existing, tx.Commit(ctx)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, storeErr(err)
	}

	var chatID int
	err = tx.QueryRow(ctx,
		`INSERT INTO chats (name, is_group, created_at) VALUES ('', false, NOW()) RETURNING id`,
	).Scan(&chatID)
	if err != nil {
		return 0, storeErr(err)
	}

	for _, userID := range []int{userA, userB} {
		if _, err := tx.Exec(ctx,
			`INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2)`, chatID, userID); err != nil {
			return 0, storeErr(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, storeErr(err)
	}
	return chatID, nil
}

func (db *PostgresDB) CreateGroupChat(ctx context.Context, ownerID int, name string, memberIDs []int) (*models.Chat, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	defer tx.Rollback(ctx)

	chat := &models.Chat{}
	err = tx.QueryRow(ctx,
		`INSERT INTO chats (name, is_group, owner_id, created_at)
		 VALUES ($1, true, $2, NOW())
		 RETURNING id, name, is_group, owner_id, created_at`,
		name, ownerID,
	).Scan(&chat.ID, &chat.Name, &chat.IsGroup, &chat.OwnerID, &chat.CreatedAt)
	if err != nil {
		return nil, storeErr(err)
	}

	for _, userID := range memberIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2)
			 ON CONFLICT (chat_id, user_id) DO NOTHING`, chat.ID, userID); err != nil {
			return nil, storeErr(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr(err)
	}
	return chat, nil
}

func (db *PostgresDB) AddChatMember(ctx context.Context, chatID, userID int) error {
	query := `
		INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2)
		ON CONFLICT (chat_id, user_id) DO NOTHING`

	if _, err := db.pool.Exec(ctx, query, chatID, userID); err != nil {
		return storeErr(err)
	}
	return nil
}

func (db *PostgresDB) RemoveChatMember(ctx context.Context, chatID, userID int) error {
	query := `DELETE FROM chat_members WHERE chat_id = $1 AND user_id = $2`
	if _, err := db.pool.Exec(ctx, query, chatID, userID); err != nil {
		return storeErr(err)
	}
	return nil
}

func (db *PostgresDB) IsChatMember(ctx context.Context, chatID, userID int) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM chat_members WHERE chat_id = $1 AND user_id = $2)`

	var exists bool
	if err := db.pool.QueryRow(ctx, query, chatID, userID).Scan(&exists); err != nil {
		return false, storeErr(err)
	}
	return exists, nil
}

func (db *PostgresDB) ChatMemberIDs(ctx context.Context, chatID int) ([]int, error) {
	query := `SELECT user_id FROM chat_members WHERE chat_id = $1 ORDER BY user_id`

	rows, err := db.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr(err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (db *PostgresDB) GetChatMembers(ctx context.Context, chatID int) ([]*models.Member, error) {
	query := `
		SELECT u.id, u.username, u.nickname
		FROM chat_members m
		JOIN users u ON m.user_id = u.id
		WHERE m.chat_id = $1
		ORDER BY u.username`

	rows, err := db.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		member := &models.Member{}
		if err := rows.Scan(&member.ID, &member.Username, &member.Nickname); err != nil {
			return nil, storeErr(err)
		}
		members = append(members, member)
	}
	return members, nil
}

func (db *PostgresDB) ListUserGroupChats(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	query := `
		SELECT c.id, c.name
		FROM chats c
		JOIN chat_members m ON m.chat_id = c.id
		WHERE m.user_id = $1 AND c.is_group = true
		ORDER BY c.name, c.id`

	return db.scanSummaries(ctx, query, userID)
}

func (db *PostgresDB) ListGroupChats(ctx context.Context) ([]models.ChatSummary, error) {
	query := `SELECT id, name FROM chats WHERE is_group = true ORDER BY name, id`
	return db.scanSummaries(ctx, query)
}

func (db *PostgresDB) scanSummaries(ctx context.Context, query string, args ...any) ([]models.ChatSummary, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var chats []models.ChatSummary
	for rows.Next() {
		var c models.ChatSummary
		if err := rows.Scan(&c.ChatID, &c.ChatName); err != nil {
			return nil, storeErr(err)
		}
		chats = append(chats, c)
	}
	return chats, nil
}

func (db *PostgresDB) DeleteChat(ctx context.Context, chatID int) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return storeErr(err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE chat_id = $1`, chatID); err != nil {
		return storeErr(err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM chat_members WHERE chat_id = $1`, chatID); err != nil {
		return storeErr(err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM chats WHERE id = $1`, chatID); err != nil {
		return storeErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr(err)
	}
	return nil
}

// Message store

func (db *PostgresDB) SaveMessage(ctx context.Context, chatID, senderID int, text string) (*models.Message, error) {
	query := `
		INSERT INTO messages (chat_id, sender_id, text, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, created_at`

	msg := &models.Message{ChatID: chatID, SenderID: senderID, Text: text}
	if err := db.pool.QueryRow(ctx, query, chatID, senderID, text).Scan(&msg.ID, &msg.CreatedAt); err != nil {
		return nil, storeErr(err)
	}
	return msg, nil
}

func (db *PostgresDB) ChatMessages(ctx context.Context, chatID int) ([]*models.Message, error) {
	query := `
		SELECT id, chat_id, sender_id, text, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := db.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Text, &msg.CreatedAt); err != nil {
			return nil, storeErr(err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
