package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"healthmate/internal/database"
	"healthmate/internal/shared"

	"github.com/google/uuid"
)

// ExecutionMetric records metadata for a single completion call.
type ExecutionMetric struct {
	ID               string    `db:"id"`
	AgentName        string    `db:"agent_name"`
	Model            string    `db:"model"`
	PromptTokens     int       `db:"prompt_tokens"`
	CompletionTokens int       `db:"completion_tokens"`
	LatencyMS        int64     `db:"latency_ms"`
	Timestamp        time.Time `db:"timestamp"`
}

// Store handles persistence of token usage.
type Store struct {
	db *database.DB
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Record saves a metric to the database.
func (s *Store) Record(ctx context.Context, m ExecutionMetric) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}

	ib := s.db.Flavor.NewInsertBuilder()
	ib.InsertInto("execution_metrics")
	ib.Cols("id", "agent_name", "model", "prompt_tokens", "completion_tokens", "latency_ms", "timestamp")
	ib.Values(m.ID, m.AgentName, m.Model, m.PromptTokens, m.CompletionTokens, m.LatencyMS, m.Timestamp.UTC())

	query, args := ib.Build()
	if _, err := s.db.SQL.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record execution metric: %w", err)
	}
	return nil
}

// RecordMeta records metrics directly from shared.AgentMeta.
func (s *Store) RecordMeta(meta shared.AgentMeta) error {
	if meta.Usage.PromptTokens == 0 && meta.Usage.CompletionTokens == 0 {
		return nil
	}
	return s.Record(context.Background(), MapUsage(meta.AgentName, meta.Usage, meta.Latency))
}

// DailyUsage represents token totals for a single day.
type DailyUsage struct {
	Date            string `json:"date"`
	TotalPrompt     int    `json:"total_prompt"`
	TotalCompletion int    `json:"total_completion"`
	TotalExecution  int    `json:"total_execution"`
}

// GetDailyUsage retrieves usage for the last N days, newest day first.
func (s *Store) GetDailyUsage(ctx context.Context, days int) ([]DailyUsage, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)

	sb := s.db.Flavor.NewSelectBuilder()
	sb.Select("id", "agent_name", "model", "prompt_tokens", "completion_tokens", "latency_ms", "timestamp")
	sb.From("execution_metrics")
	sb.Where(sb.GreaterEqualThan("timestamp", since))

	query, args := sb.Build()
	var rows []ExecutionMetric
	if err := s.db.SQL.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query execution metrics: %w", err)
	}

	// Grouped in Go so the same query works on both drivers.
	byDay := make(map[string]*DailyUsage)
	for _, r := range rows {
		day := r.Timestamp.UTC().Format("2006-01-02")
		u, ok := byDay[day]
		if !ok {
			u = &DailyUsage{Date: day}
			byDay[day] = u
		}
		u.TotalPrompt += r.PromptTokens
		u.TotalCompletion += r.CompletionTokens
		u.TotalExecution++
	}

	results := make([]DailyUsage, 0, len(byDay))
	for _, u := range byDay {
		results = append(results, *u)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Date > results[j].Date })
	return results, nil
}

// Cleanup removes records older than the specified number of days.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := time.Now().UTC().AddDate(0, 0, -olderThanDays)

	db := s.db.Flavor.NewDeleteBuilder()
	db.DeleteFrom("execution_metrics")
	db.Where(db.LessThan("timestamp", threshold))

	query, args := db.Build()
	res, err := s.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up execution metrics: %w", err)
	}
	return res.RowsAffected()
}

// MapUsage helper to convert shared.TokenUsage to ExecutionMetric.
func MapUsage(agentName string, usage shared.TokenUsage, latency time.Duration) ExecutionMetric {
	return ExecutionMetric{
		AgentName:        agentName,
		Model:            usage.Model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		LatencyMS:        latency.Milliseconds(),
		Timestamp:        time.Now().UTC(),
	}
}
