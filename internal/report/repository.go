package report

import (
	"context"
	"fmt"
	"time"

	"healthmate/internal/database"

	"github.com/google/uuid"
)

// dateLayout is how report dates are stored.
const dateLayout = "2006-01-02"

// HealthReport is an analyzed report belonging to a user.
type HealthReport struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	Title      string    `json:"title" db:"title"`
	Summary    string    `json:"summary" db:"summary"`
	ReportDate string    `json:"report_date" db:"report_date"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Repository persists analyzed reports.
type Repository struct {
	db  *database.DB
	now func() time.Time
}

// NewRepository creates a new Repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Save stores a summary under the file name, dated today.
func (r *Repository) Save(ctx context.Context, userID, fileName, summary string) (HealthReport, error) {
	now := r.now().UTC()
	rep := HealthReport{
		ID:         uuid.New().String(),
		UserID:     userID,
		Title:      fileName,
		Summary:    summary,
		ReportDate: now.Format(dateLayout),
		CreatedAt:  now,
	}

	ib := r.db.Flavor.NewInsertBuilder()
	ib.InsertInto("health_reports")
	ib.Cols("id", "user_id", "title", "summary", "report_date", "created_at")
	ib.Values(rep.ID, rep.UserID, rep.Title, rep.Summary, rep.ReportDate, rep.CreatedAt)

	query, args := ib.Build()
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		return HealthReport{}, fmt.Errorf("failed to save report: %w", err)
	}
	return rep, nil
}

// ListByUser returns the user's reports, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]HealthReport, error) {
	sb := r.db.Flavor.NewSelectBuilder()
	sb.Select("id", "user_id", "title", "summary", "report_date", "created_at")
	sb.From("health_reports")
	sb.Where(sb.Equal("user_id", userID))
	sb.OrderBy("created_at DESC")

	query, args := sb.Build()
	reports := []HealthReport{}
	if err := r.db.SQL.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list reports for user %s: %w", userID, err)
	}
	return reports, nil
}
