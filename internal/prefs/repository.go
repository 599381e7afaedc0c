package prefs

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

// Repository stores one Set per owner (a Telegram chat, for instance).
type Repository struct {
	db *database.DB
}

// NewRepository creates a new Repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

type row struct {
	OwnerID   string    `db:"owner_id"`
	Allergies string    `db:"allergies"`
	Dislikes  string    `db:"dislikes"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Get returns the owner's set; unknown owners get an empty set.
func (r *Repository) Get(ctx context.Context, ownerID string) (Set, error) {
	sb := r.db.Flavor.NewSelectBuilder()
	sb.Select("owner_id", "allergies", "dislikes", "updated_at")
	sb.From("preference_sets")
	sb.Where(sb.Equal("owner_id", ownerID))

	query, args := sb.Build()
	var rw row
	if err := r.db.SQL.GetContext(ctx, &rw, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Set{}, nil
		}
		return Set{}, fmt.Errorf("failed to load preferences for %s: %w", ownerID, err)
	}

	var s Set
	if err := json.Unmarshal([]byte(rw.Allergies), &s.Allergies); err != nil {
		return Set{}, fmt.Errorf("failed to decode allergies: %w", err)
	}
	if err := json.Unmarshal([]byte(rw.Dislikes), &s.Dislikes); err != nil {
		return Set{}, fmt.Errorf("failed to decode dislikes: %w", err)
	}
	return s, nil
}

// Put replaces the owner's set.
func (r *Repository) Put(ctx context.Context, ownerID string, s Set) error {
	allergies, err := json.Marshal(nonNil(s.Allergies))
	if err != nil {
		return fmt.Errorf("failed to encode allergies: %w", err)
	}
	dislikes, err := json.Marshal(nonNil(s.Dislikes))
	if err != nil {
		return fmt.Errorf("failed to encode dislikes: %w", err)
	}

	del := r.db.Flavor.NewDeleteBuilder()
	del.DeleteFrom("preference_sets")
	del.Where(del.Equal("owner_id", ownerID))
	deleteQuery, deleteArgs := del.Build()

	ib := r.db.Flavor.NewInsertBuilder()
	ib.InsertInto("preference_sets")
	ib.Cols("owner_id", "allergies", "dislikes", "updated_at")
	ib.Values(ownerID, string(allergies), string(dislikes), time.Now().UTC())
	insertQuery, insertArgs := ib.Build()

	return r.db.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...); err != nil {
			return fmt.Errorf("failed to clear preferences for %s: %w", ownerID, err)
		}
		if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
			return fmt.Errorf("failed to save preferences for %s: %w", ownerID, err)
		}
		return nil
	})
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
