package diet

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"healthmate/internal/llm"
	"healthmate/internal/metrics"
	"healthmate/internal/prefs"
	"healthmate/internal/session"
	"healthmate/internal/shared"

	"go.uber.org/zap"
)

//go:embed suggestions_prompt.md
var suggestionsPrompt string

//go:embed plan_prompt.md
var planPrompt string

//go:embed section_prompt.md
var sectionPromptText string

var sectionPrompt = template.Must(template.New("section").Parse(sectionPromptText))

const suggestionsUserMessage = "Generate 5 personalized diet and lifestyle suggestions for a health-conscious individual."

const (
	agentSuggestions = "DietSuggestions"
	agentPlan        = "DietPlan"
	agentSection     = "DietSection"
)

var (
	// ErrEmptyPrompt is returned when a free-text request has no goal text.
	ErrEmptyPrompt = errors.New("prompt is required")
	// ErrInvalidSection is returned for a section outside Sections.
	ErrInvalidSection = errors.New("regenerateSection must be one of Breakfast, Lunch, Dinner, Snacks")
)

// SuggestionStore persists structured suggestions.
type SuggestionStore interface {
	SaveBatch(ctx context.Context, userID string, in Interpretation) ([]Suggestion, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Suggestion, error)
}

// PlanStore persists free-text plans.
type PlanStore interface {
	Save(ctx context.Context, userID, content string) (Plan, error)
	ListRecent(ctx context.Context, userID string) ([]Plan, error)
	Latest(ctx context.Context, userID string) (*Plan, error)
}

// SuggestionsResult is what a structured generation returns to callers.
type SuggestionsResult struct {
	Suggestions []Suggestion
	Source      Source
	Reason      string
}

// PlanRequest is a free-text generation. When RegenerateSection is set only
// that section is produced and appended to CurrentPlan, or to the user's
// latest saved plan when CurrentPlan is empty.
type PlanRequest struct {
	UserID            string
	Prompt            string
	RegenerateSection string
	CurrentPlan       string
	Preferences       prefs.Set
}

// Service runs the diet flows: prompt, completion, interpretation, persistence.
type Service struct {
	textGen     llm.TextGenerator
	suggestions SuggestionStore
	plans       PlanStore
	tracker     *session.Tracker
	recorder    shared.MetaRecorder
	logger      *zap.Logger
}

// NewService creates a new Service. recorder may be nil.
func NewService(
	textGen llm.TextGenerator,
	suggestions SuggestionStore,
	plans PlanStore,
	tracker *session.Tracker,
	recorder shared.MetaRecorder,
	logger *zap.Logger,
) *Service {
	if recorder == nil {
		recorder = shared.NopRecorder{}
	}
	return &Service{
		textGen:     textGen,
		suggestions: suggestions,
		plans:       plans,
		tracker:     tracker,
		recorder:    recorder,
		logger:      logger,
	}
}

// GenerateSuggestions produces five categorized suggestions and stores them
// for userID. If storing fails nothing is returned.
func (s *Service) GenerateSuggestions(ctx context.Context, userID string, p prefs.Set) (result SuggestionsResult, err error) {
	op, err := s.begin(ctx, userID, session.KindSuggestions)
	if err != nil {
		return SuggestionsResult{}, err
	}
	defer func() { op.Finish(err) }()

	resp, err := s.complete(ctx, agentSuggestions, suggestionsPrompt, prefs.BuildPrompt(suggestionsUserMessage, p))
	if err != nil {
		return SuggestionsResult{}, err
	}

	interp := Interpret(resp.Content)
	metrics.DietInterpretationsTotal.WithLabelValues(string(interp.Source)).Inc()
	if interp.FellBack() {
		s.logger.Warn("using default suggestions",
			zap.String("user_id", userID),
			zap.String("reason", interp.Reason),
		)
	}

	saved, err := s.suggestions.SaveBatch(ctx, userID, interp)
	if err != nil {
		return SuggestionsResult{}, err
	}

	return SuggestionsResult{Suggestions: saved, Source: interp.Source, Reason: interp.Reason}, nil
}

// GeneratePlan produces a full plan, or regenerates one section of an
// existing plan. The result is not saved; see SavePlan.
func (s *Service) GeneratePlan(ctx context.Context, req PlanRequest) (plan string, err error) {
	goal := strings.TrimSpace(req.Prompt)
	if goal == "" {
		return "", ErrEmptyPrompt
	}
	if req.RegenerateSection != "" && !ValidSection(req.RegenerateSection) {
		return "", ErrInvalidSection
	}

	kind := session.KindPlan
	if req.RegenerateSection != "" {
		kind = session.KindRegenerate
	}
	op, err := s.begin(ctx, req.UserID, kind)
	if err != nil {
		return "", err
	}
	defer func() { op.Finish(err) }()

	user := prefs.BuildPrompt(goal, req.Preferences)

	if req.RegenerateSection == "" {
		resp, err := s.complete(ctx, agentPlan, planPrompt, user)
		if err != nil {
			return "", err
		}
		return resp.Content, nil
	}

	var sb bytes.Buffer
	if err := sectionPrompt.Execute(&sb, struct{ Section string }{req.RegenerateSection}); err != nil {
		return "", fmt.Errorf("failed to render section prompt: %w", err)
	}

	base := req.CurrentPlan
	if base == "" {
		latest, err := s.plans.Latest(ctx, req.UserID)
		if err != nil {
			return "", err
		}
		if latest != nil {
			base = latest.Content
		}
	}

	resp, err := s.complete(ctx, agentSection, sb.String(), user)
	if err != nil {
		return "", err
	}
	return AppendRegenerated(base, req.RegenerateSection, resp.Content), nil
}

// SavePlan stores content as the user's newest plan and returns the kept history.
func (s *Service) SavePlan(ctx context.Context, userID, content string) (plans []Plan, err error) {
	if strings.TrimSpace(content) == "" {
		return nil, errors.New("plan is empty")
	}

	op, err := s.begin(ctx, userID, session.KindSavePlan)
	if err != nil {
		return nil, err
	}
	defer func() { op.Finish(err) }()

	if _, err := s.plans.Save(ctx, userID, content); err != nil {
		return nil, err
	}
	return s.plans.ListRecent(ctx, userID)
}

// Suggestions lists the user's stored suggestions, newest first.
func (s *Service) Suggestions(ctx context.Context, userID string, limit int) ([]Suggestion, error) {
	return s.suggestions.ListByUser(ctx, userID, limit)
}

// Plans lists the user's saved plans, newest first.
func (s *Service) Plans(ctx context.Context, userID string) ([]Plan, error) {
	return s.plans.ListRecent(ctx, userID)
}

func (s *Service) begin(ctx context.Context, userID string, kind session.Kind) (*session.Op, error) {
	op, err := s.tracker.Begin(ctx, userID, kind)
	if errors.Is(err, session.ErrBusy) {
		metrics.OperationsRejectedTotal.WithLabelValues(string(kind)).Inc()
	}
	return op, err
}

func (s *Service) complete(ctx context.Context, agent, system, user string) (llm.ContentResponse, error) {
	start := time.Now()
	resp, err := s.textGen.GenerateContent(ctx, llm.Prompt(system, user))
	latency := time.Since(start)
	metrics.ObserveCompletion(agent, latency.Seconds(), err)
	if err != nil {
		return llm.ContentResponse{}, err
	}

	if recErr := s.recorder.RecordMeta(shared.AgentMeta{AgentName: agent, Usage: resp.Usage, Latency: latency}); recErr != nil {
		s.logger.Warn("failed to record usage", zap.String("agent", agent), zap.Error(recErr))
	}
	return resp, nil
}
