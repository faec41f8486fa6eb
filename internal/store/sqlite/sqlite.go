package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/samber/lo"

	"github.com/vovakirdan/wirechat-fanout/internal/store"
)

//go:embed schema.sql
var schema string

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// New opens the database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to seed data right after the schema is applied.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Migrate applies the embedded schema. It is idempotent.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== ConversationStore implementation ====

// CreateConversation creates a conversation and adds the creator as admin.
// Direct conversations are deduplicated by their participant pair.
func (s *SQLiteStore) CreateConversation(ctx context.Context, convType store.ConversationType, name string, createdBy int64, participantIDs []int64) (*store.Conversation, error) {
	members := lo.Uniq(append([]int64{createdBy}, participantIDs...))

	var directKey *string
	switch convType {
	case store.ConversationTypeDirect:
		if len(members) != 2 {
			return nil, fmt.Errorf("direct conversations need exactly 2 participants: %w", store.ErrInvalidConversation)
		}
		key := directKeyFor(members[0], members[1])
		directKey = &key

		existing, err := s.getConversationByDirectKey(ctx, key)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("check existing conversation: %w", err)
		}
	case store.ConversationTypeGroup:
		if len(members) < 2 {
			return nil, fmt.Errorf("group conversations need at least 2 participants: %w", store.ErrInvalidConversation)
		}
	default:
		return nil, fmt.Errorf("unknown conversation type %q: %w", convType, store.ErrInvalidConversation)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	now := s.now()
	var nameArg any
	if name != "" {
		nameArg = name
	}
	result, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (type, name, direct_key, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(convType), nameArg, directKey, createdBy, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	for _, userID := range members {
		role := store.RoleMember
		if userID == createdBy {
			role = store.RoleAdmin
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO participants (conversation_id, user_id, role, joined_at)
			VALUES (?, ?, ?, ?)
		`, id, userID, string(role), now); err != nil {
			return nil, fmt.Errorf("add participant %d: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.GetConversation(ctx, id)
}

// GetConversation retrieves a conversation by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, id int64) (*store.Conversation, error) {
	query := `
		SELECT id, type, COALESCE(name, ''), created_by, created_at, updated_at
		FROM conversations
		WHERE id = ?
	`
	return s.scanConversation(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLiteStore) getConversationByDirectKey(ctx context.Context, key string) (*store.Conversation, error) {
	query := `
		SELECT id, type, COALESCE(name, ''), created_by, created_at, updated_at
		FROM conversations
		WHERE direct_key = ?
	`
	return s.scanConversation(s.db.QueryRowContext(ctx, query, key))
}

func (s *SQLiteStore) scanConversation(row *sql.Row) (*store.Conversation, error) {
	var conv store.Conversation
	var convType string
	err := row.Scan(&conv.ID, &convType, &conv.Name, &conv.CreatedBy, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("conversation: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	conv.Type = store.ConversationType(convType)
	return &conv, nil
}

// ListConversations lists the user's active conversations with their latest message.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID int64) ([]*store.Conversation, error) {
	query := `
		SELECT c.id, c.type, COALESCE(c.name, ''), c.created_by, c.created_at, c.updated_at,
		       m.id, m.sender_id, m.content, m.created_at
		FROM conversations c
		JOIN participants p
		  ON p.conversation_id = c.id AND p.user_id = ? AND p.left_at IS NULL
		LEFT JOIN messages m
		  ON m.id = (SELECT MAX(id) FROM messages WHERE conversation_id = c.id)
		ORDER BY c.updated_at DESC, c.id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*store.Conversation
	for rows.Next() {
		var conv store.Conversation
		var convType string
		var msgID, senderID sql.NullInt64
		var content sql.NullString
		var msgCreatedAt sql.NullTime
		if err := rows.Scan(
			&conv.ID, &convType, &conv.Name, &conv.CreatedBy, &conv.CreatedAt, &conv.UpdatedAt,
			&msgID, &senderID, &content, &msgCreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conv.Type = store.ConversationType(convType)
		if msgID.Valid {
			conv.LastMessage = &store.Message{
				ID:             msgID.Int64,
				ConversationID: conv.ID,
				SenderID:       senderID.Int64,
				Content:        content.String,
				CreatedAt:      msgCreatedAt.Time,
			}
		}
		conversations = append(conversations, &conv)
	}

	return conversations, rows.Err()
}

// ActiveParticipants returns user IDs of participants who have not left, in join order.
func (s *SQLiteStore) ActiveParticipants(ctx context.Context, conversationID int64) ([]int64, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	query := `
		SELECT user_id FROM participants
		WHERE conversation_id = ? AND left_at IS NULL
		ORDER BY joined_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	var members []int64
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		members = append(members, userID)
	}

	return members, rows.Err()
}

// AddParticipant adds a user to a group conversation. Re-adding an active participant is a no-op.
func (s *SQLiteStore) AddParticipant(ctx context.Context, conversationID, userID int64, role store.ParticipantRole) error {
	conv, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.Type == store.ConversationTypeDirect {
		return fmt.Errorf("cannot add participants to a direct conversation: %w", store.ErrInvalidConversation)
	}

	query := `
		INSERT INTO participants (conversation_id, user_id, role, joined_at)
		SELECT ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM participants
			WHERE conversation_id = ? AND user_id = ? AND left_at IS NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, query, conversationID, userID, string(role), s.now(), conversationID, userID); err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

// LeaveConversation marks the user's active participation as ended.
func (s *SQLiteStore) LeaveConversation(ctx context.Context, conversationID, userID int64) error {
	query := `
		UPDATE participants SET left_at = ?
		WHERE conversation_id = ? AND user_id = ? AND left_at IS NULL
	`
	result, err := s.db.ExecContext(ctx, query, s.now(), conversationID, userID)
	if err != nil {
		return fmt.Errorf("update participant: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotParticipant
	}
	return nil
}

// IsParticipant checks if the user is an active participant of the conversation.
func (s *SQLiteStore) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	return isParticipant(ctx, s.db, conversationID, userID)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func isParticipant(ctx context.Context, q queryer, conversationID, userID int64) (bool, error) {
	query := `
		SELECT 1 FROM participants
		WHERE conversation_id = ? AND user_id = ? AND left_at IS NULL
	`
	var exists int
	err := q.QueryRowContext(ctx, query, conversationID, userID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query membership: %w", err)
	}
	return true, nil
}

// ==== MessageStore implementation ====

// CreateMessage persists a message from an active participant and bumps the conversation.
func (s *SQLiteStore) CreateMessage(ctx context.Context, content string, senderID, conversationID int64) (*store.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, store.ErrEmptyContent
	}
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	ok, err := isParticipant(ctx, tx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, store.ErrNotParticipant
	}

	msg := &store.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      s.now(),
	}
	result, err := tx.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, sender_id, content, created_at)
		VALUES (?, ?, ?, ?)
	`, msg.ConversationID, msg.SenderID, msg.Content, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	msg.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, msg.CreatedAt, conversationID); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return msg, nil
}

// ListMessages retrieves messages from a conversation in chronological order.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID int64, limit int, beforeID, afterID *int64) ([]*store.Message, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}

	conds := []string{"conversation_id = ?"}
	args := []any{conversationID}
	if beforeID != nil {
		conds = append(conds, "id < ?")
		args = append(args, *beforeID)
	}
	if afterID != nil {
		conds = append(conds, "id > ?")
		args = append(args, *afterID)
	}

	// Deltas after a known id read forward; everything else takes the newest page.
	order := "DESC"
	if afterID != nil && beforeID == nil {
		order = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT id, conversation_id, sender_id, content, created_at
		FROM messages
		WHERE %s
		ORDER BY id %s
		LIMIT ?
	`, strings.Join(conds, " AND "), order)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if order == "DESC" {
		for i := range len(messages) / 2 {
			messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
		}
	}
	return messages, nil
}

// MarkRead records that userID has read messageID. Repeated calls keep the first read time.
func (s *SQLiteStore) MarkRead(ctx context.Context, messageID, userID int64) (*store.MessageRead, error) {
	var conversationID int64
	err := s.db.QueryRowContext(ctx, `SELECT conversation_id FROM messages WHERE id = ?`, messageID).Scan(&conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}

	ok, err := s.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, store.ErrNotParticipant
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO message_reads (message_id, user_id, read_at)
		VALUES (?, ?, ?)
	`, messageID, userID, s.now()); err != nil {
		return nil, fmt.Errorf("insert read receipt: %w", err)
	}

	read := &store.MessageRead{MessageID: messageID, ConversationID: conversationID, UserID: userID}
	if err := s.db.QueryRowContext(ctx, `
		SELECT read_at FROM message_reads WHERE message_id = ? AND user_id = ?
	`, messageID, userID).Scan(&read.ReadAt); err != nil {
		return nil, fmt.Errorf("query read receipt: %w", err)
	}
	return read, nil
}

func directKeyFor(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("dm:%d:%d", a, b)
}
