package telegram

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"healthmate/internal/database"

	"github.com/jmoiron/sqlx"
)

// Session is the bot's per-user conversation state.
type Session struct {
	UserID      string    `db:"user_id"`
	ContextData string    `db:"context_data"`
	ExpiresAt   time.Time `db:"expires_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// SessionContextData holds structured data stored in the context_data JSON field.
type SessionContextData struct {
	ChatID    string `json:"chat_id,omitempty"`
	Goal      string `json:"goal,omitempty"`
	DraftPlan string `json:"draft_plan,omitempty"`
}

// GetContextData unmarshals the context_data JSON field.
func (s *Session) GetContextData() (SessionContextData, error) {
	var data SessionContextData
	err := json.Unmarshal([]byte(s.ContextData), &data)
	return data, err
}

// SessionRepository provides access to session persistence operations.
type SessionRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewSessionRepository creates a new SessionRepository instance.
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db, now: time.Now}
}

// GetActive returns the user's session, or nil when it is missing or expired.
func (sr *SessionRepository) GetActive(ctx context.Context, userID string) (*Session, error) {
	sb := sr.db.Flavor.NewSelectBuilder()
	sb.Select("user_id", "context_data", "expires_at", "updated_at")
	sb.From("bot_sessions")
	sb.Where(sb.Equal("user_id", userID), sb.GreaterThan("expires_at", sr.now().UTC()))

	query, args := sb.Build()
	var s Session
	if err := sr.db.SQL.GetContext(ctx, &s, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session for %s: %w", userID, err)
	}
	return &s, nil
}

// Load returns the user's context data, empty when there is no active session.
func (sr *SessionRepository) Load(ctx context.Context, userID string) (SessionContextData, error) {
	s, err := sr.GetActive(ctx, userID)
	if err != nil || s == nil {
		return SessionContextData{}, err
	}
	return s.GetContextData()
}

// Put replaces the user's session and pushes its expiry ttl into the future.
func (sr *SessionRepository) Put(ctx context.Context, userID string, data SessionContextData, ttl time.Duration) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	now := sr.now().UTC()

	del := sr.db.Flavor.NewDeleteBuilder()
	del.DeleteFrom("bot_sessions")
	del.Where(del.Equal("user_id", userID))
	deleteQuery, deleteArgs := del.Build()

	ib := sr.db.Flavor.NewInsertBuilder()
	ib.InsertInto("bot_sessions")
	ib.Cols("user_id", "context_data", "expires_at", "updated_at")
	ib.Values(userID, string(jsonData), now.Add(ttl), now)
	insertQuery, insertArgs := ib.Build()

	return sr.db.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...); err != nil {
			return fmt.Errorf("failed to clear session for %s: %w", userID, err)
		}
		if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
			return fmt.Errorf("failed to save session for %s: %w", userID, err)
		}
		return nil
	})
}

// Delete removes a session.
func (sr *SessionRepository) Delete(ctx context.Context, userID string) error {
	del := sr.db.Flavor.NewDeleteBuilder()
	del.DeleteFrom("bot_sessions")
	del.Where(del.Equal("user_id", userID))

	query, args := del.Build()
	_, err := sr.db.SQL.ExecContext(ctx, query, args...)
	return err
}

// CleanupExpired removes all expired sessions.
func (sr *SessionRepository) CleanupExpired(ctx context.Context) (int64, error) {
	del := sr.db.Flavor.NewDeleteBuilder()
	del.DeleteFrom("bot_sessions")
	del.Where(del.LessEqualThan("expires_at", sr.now().UTC()))

	query, args := del.Build()
	res, err := sr.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up sessions: %w", err)
	}
	return res.RowsAffected()
}
