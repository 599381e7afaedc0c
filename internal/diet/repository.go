package diet

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

var suggestionCols = []string{"id", "user_id", "title", "description", "category", "source", "fallback_reason", "created_at"}

// SuggestionRepository is a database-backed repository for diet suggestions.
type SuggestionRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewSuggestionRepository creates a new SuggestionRepository.
func NewSuggestionRepository(db *database.DB) *SuggestionRepository {
	return &SuggestionRepository{db: db, now: time.Now}
}

// SaveBatch stores every suggestion of in for userID in one statement inside
// one transaction. Either all rows are written or none.
func (r *SuggestionRepository) SaveBatch(ctx context.Context, userID string, in Interpretation) ([]Suggestion, error) {
	if len(in.Suggestions) == 0 {
		return nil, fmt.Errorf("no suggestions to save")
	}

	now := r.now().UTC()
	rows := make([]Suggestion, 0, len(in.Suggestions))

	ib := r.db.Flavor.NewInsertBuilder()
	ib.InsertInto("diet_suggestions")
	ib.Cols(suggestionCols...)
	for _, s := range in.Suggestions {
		s.ID = uuid.New().String()
		s.UserID = userID
		s.Source = in.Source
		s.FallbackReason = in.Reason
		s.CreatedAt = now
		ib.Values(s.ID, s.UserID, s.Title, s.Description, string(s.Category), string(s.Source), s.FallbackReason, s.CreatedAt)
		rows = append(rows, s)
	}

	query, args := ib.Build()
	err := r.db.InTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save suggestions for user %s: %w", userID, err)
	}
	return rows, nil
}

// ListByUser returns the user's most recent suggestions, newest first.
func (r *SuggestionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]Suggestion, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}

	sb := r.db.Flavor.NewSelectBuilder()
	sb.Select(suggestionCols...)
	sb.From("diet_suggestions")
	sb.Where(sb.Equal("user_id", userID))
	sb.OrderBy("created_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	suggestions := []Suggestion{}
	if err := r.db.SQL.SelectContext(ctx, &suggestions, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list suggestions for user %s: %w", userID, err)
	}
	return suggestions, nil
}

// PlanRepository keeps the most recent saved plans of each user.
type PlanRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(db *database.DB) *PlanRepository {
	return &PlanRepository{db: db, now: time.Now}
}

// Save inserts a plan and prunes the user's history to MaxStoredPlans,
// dropping the oldest.
func (r *PlanRepository) Save(ctx context.Context, userID, content string) (Plan, error) {
	plan := Plan{
		ID:        uuid.New().String(),
		UserID:    userID,
		Content:   content,
		CreatedAt: r.now().UTC(),
	}

	ib := r.db.Flavor.NewInsertBuilder()
	ib.InsertInto("diet_plans")
	ib.Cols("id", "user_id", "content", "created_at")
	ib.Values(plan.ID, plan.UserID, plan.Content, plan.CreatedAt)
	insertQuery, insertArgs := ib.Build()

	keep := r.db.Flavor.NewSelectBuilder()
	keep.Select("id")
	keep.From("diet_plans")
	keep.Where(keep.Equal("user_id", userID))
	keep.OrderBy("created_at DESC")
	keep.Limit(MaxStoredPlans)

	del := r.db.Flavor.NewDeleteBuilder()
	del.DeleteFrom("diet_plans")
	del.Where(
		del.Equal("user_id", userID),
		del.NotIn("id", keep),
	)
	deleteQuery, deleteArgs := del.Build()

	err := r.db.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...)
		return err
	})
	if err != nil {
		return Plan{}, fmt.Errorf("failed to save plan for user %s: %w", userID, err)
	}
	return plan, nil
}

// ListRecent returns the user's saved plans, newest first.
func (r *PlanRepository) ListRecent(ctx context.Context, userID string) ([]Plan, error) {
	sb := r.db.Flavor.NewSelectBuilder()
	sb.Select("id", "user_id", "content", "created_at")
	sb.From("diet_plans")
	sb.Where(sb.Equal("user_id", userID))
	sb.OrderBy("created_at DESC")
	sb.Limit(MaxStoredPlans)

	query, args := sb.Build()
	plans := []Plan{}
	if err := r.db.SQL.SelectContext(ctx, &plans, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list plans for user %s: %w", userID, err)
	}
	return plans, nil
}

// Latest returns the user's newest plan, or nil when there is none.
func (r *PlanRepository) Latest(ctx context.Context, userID string) (*Plan, error) {
	sb := r.db.Flavor.NewSelectBuilder()
	sb.Select("id", "user_id", "content", "created_at")
	sb.From("diet_plans")
	sb.Where(sb.Equal("user_id", userID))
	sb.OrderBy("created_at DESC")
	sb.Limit(1)

	query, args := sb.Build()
	var plan Plan
	if err := r.db.SQL.GetContext(ctx, &plan, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest plan for user %s: %w", userID, err)
	}
	return &plan, nil
}
