package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"healthmate/internal/database"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned for unknown chats or chats owned by someone else.
var ErrNotFound = errors.New("chat not found")

// DefaultTitle is the title of a chat before its first message.
const DefaultTitle = "New Health Chat"

// Chat is one conversation with the assistant.
type Chat struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Title     string    `json:"title" db:"title"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Message is a stored chat turn. Role is "user" or "assistant".
type Message struct {
	ID        string    `json:"id" db:"id"`
	ChatID    string    `json:"chat_id" db:"chat_id"`
	Role      string    `json:"role" db:"role"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Repository persists chats and their messages.
type Repository struct {
	db  *database.DB
	now func() time.Time
}

// NewRepository creates a new Repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Create starts an empty chat for userID.
func (r *Repository) Create(ctx context.Context, userID string) (Chat, error) {
	now := r.now().UTC()
	c := Chat{ID: uuid.New().String(), UserID: userID, Title: DefaultTitle, CreatedAt: now, UpdatedAt: now}

	ib := r.db.Flavor.NewInsertBuilder()
	ib.InsertInto("chats")
	ib.Cols("id", "user_id", "title", "created_at", "updated_at")
	ib.Values(c.ID, c.UserID, c.Title, c.CreatedAt, c.UpdatedAt)

	query, args := ib.Build()
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		return Chat{}, fmt.Errorf("failed to create chat: %w", err)
	}
	return c, nil
}

// Get loads a chat owned by userID.
func (r *Repository) Get(ctx context.Context, userID, chatID string) (Chat, error) {
	sb := r.db.Flavor.NewSelectBuilder()
	sb.Select("id", "user_id", "title", "created_at", "updated_at")
	sb.From("chats")
	sb.Where(sb.Equal("id", chatID), sb.Equal("user_id", userID))

	query, args := sb.Build()
	var c Chat
	if err := r.db.SQL.GetContext(ctx, &c, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Chat{}, ErrNotFound
		}
		return Chat{}, fmt.Errorf("failed to get chat %s: %w", chatID, err)
	}
	return c, nil
}

// ListByUser returns the user's chats, most recently active first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]Chat, error) {
	sb := r.db.Flavor.NewSelectBuilder()
	sb.Select("id", "user_id", "title", "created_at", "updated_at")
	sb.From("chats")
	sb.Where(sb.Equal("user_id", userID))
	sb.OrderBy("updated_at DESC")

	query, args := sb.Build()
	chats := []Chat{}
	if err := r.db.SQL.SelectContext(ctx, &chats, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list chats for user %s: %w", userID, err)
	}
	return chats, nil
}

// Messages returns a chat's messages, oldest first.
func (r *Repository) Messages(ctx context.Context, chatID string) ([]Message, error) {
	sb := r.db.Flavor.NewSelectBuilder()
	sb.Select("id", "chat_id", "role", "content", "created_at")
	sb.From("chat_messages")
	sb.Where(sb.Equal("chat_id", chatID))
	sb.OrderBy("created_at ASC")

	query, args := sb.Build()
	messages := []Message{}
	if err := r.db.SQL.SelectContext(ctx, &messages, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list messages for chat %s: %w", chatID, err)
	}
	return messages, nil
}

// AddMessage appends a message and bumps the chat's updated_at.
func (r *Repository) AddMessage(ctx context.Context, chatID, role, content string) (Message, error) {
	m := Message{ID: uuid.New().String(), ChatID: chatID, Role: role, Content: content, CreatedAt: r.now().UTC()}

	ib := r.db.Flavor.NewInsertBuilder()
	ib.InsertInto("chat_messages")
	ib.Cols("id", "chat_id", "role", "content", "created_at")
	ib.Values(m.ID, m.ChatID, m.Role, m.Content, m.CreatedAt)
	insertQuery, insertArgs := ib.Build()

	ub := r.db.Flavor.NewUpdateBuilder()
	ub.Update("chats")
	ub.Set(ub.Assign("updated_at", m.CreatedAt))
	ub.Where(ub.Equal("id", chatID))
	updateQuery, updateArgs := ub.Build()

	err := r.db.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, updateQuery, updateArgs...)
		return err
	})
	if err != nil {
		return Message{}, fmt.Errorf("failed to add message to chat %s: %w", chatID, err)
	}
	return m, nil
}

// Rename sets a chat's title.
func (r *Repository) Rename(ctx context.Context, chatID, title string) error {
	ub := r.db.Flavor.NewUpdateBuilder()
	ub.Update("chats")
	ub.Set(ub.Assign("title", title))
	ub.Where(ub.Equal("id", chatID))

	query, args := ub.Build()
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to rename chat %s: %w", chatID, err)
	}
	return nil
}

// Delete removes a chat owned by userID together with its messages.
func (r *Repository) Delete(ctx context.Context, userID, chatID string) error {
	if _, err := r.Get(ctx, userID, chatID); err != nil {
		return err
	}

	dm := r.db.Flavor.NewDeleteBuilder()
	dm.DeleteFrom("chat_messages")
	dm.Where(dm.Equal("chat_id", chatID))
	msgQuery, msgArgs := dm.Build()

	dc := r.db.Flavor.NewDeleteBuilder()
	dc.DeleteFrom("chats")
	dc.Where(dc.Equal("id", chatID))
	chatQuery, chatArgs := dc.Build()

	return r.db.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, msgQuery, msgArgs...); err != nil {
			return fmt.Errorf("failed to delete messages of chat %s: %w", chatID, err)
		}
		if _, err := tx.ExecContext(ctx, chatQuery, chatArgs...); err != nil {
			return fmt.Errorf("failed to delete chat %s: %w", chatID, err)
		}
		return nil
	})
}
