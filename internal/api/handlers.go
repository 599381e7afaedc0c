package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"healthmate/internal/diet"
	"healthmate/internal/metrics"
	"healthmate/internal/prefs"
	"healthmate/internal/report"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ErrMissingUserID is returned when neither the token nor the request names a user.
var ErrMissingUserID = errors.New("userId is required")

type errorResponse struct {
	Error string `json:"error"`
}

type dietRequest struct {
	UserID            string   `json:"userId"`
	Prompt            string   `json:"prompt"`
	RegenerateSection string   `json:"regenerateSection" validate:"omitempty,oneof=Breakfast Lunch Dinner Snacks"`
	CurrentPlan       string   `json:"currentPlan"`
	Allergies         []string `json:"allergies" validate:"omitempty,dive,max=100"`
	Dislikes          []string `json:"dislikes" validate:"omitempty,dive,max=100"`
}

type suggestionsResponse struct {
	Success        bool              `json:"success"`
	Suggestions    []diet.Suggestion `json:"suggestions"`
	Source         diet.Source       `json:"source"`
	FallbackReason string            `json:"fallbackReason,omitempty"`
}

type planResponse struct {
	Success     bool   `json:"success"`
	Suggestions string `json:"suggestions"`
}

type savePlanRequest struct {
	UserID string `json:"userId"`
	Plan   string `json:"plan" validate:"required"`
}

type plansResponse struct {
	Success bool        `json:"success"`
	Plans   []diet.Plan `json:"plans"`
}

type analyzeRequest struct {
	FileName string `json:"fileName" validate:"required"`
	FileURL  string `json:"fileUrl" validate:"omitempty,url"`
	UserID   string `json:"userId"`
}

type analyzeResponse struct {
	Summary string `json:"summary"`
}

type chatRequest struct {
	UserID  string `json:"userId"`
	ChatID  string `json:"chatId"`
	Message string `json:"message" validate:"required"`
}

type chatResponse struct {
	Response string `json:"response"`
	ChatID   string `json:"chatId"`
}

type healthResponse struct {
	Status   string            `json:"status"`
	Database string            `json:"database"`
	System   metrics.SysHealth `json:"system"`
}

func (s *Server) bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	return s.validate.Struct(req)
}

// userID prefers the authenticated subject over the supplied id.
func userID(c echo.Context, supplied string) (string, error) {
	if id, ok := c.Get(userIDKey).(string); ok && id != "" {
		return id, nil
	}
	if supplied == "" {
		return "", ErrMissingUserID
	}
	return supplied, nil
}

// generateDietSuggestions runs the structured flow for {userId} and the
// free-text plan flow when a prompt is present.
func (s *Server) generateDietSuggestions(c echo.Context) error {
	var req dietRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	uid, err := userID(c, req.UserID)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	p, err := s.preferences(ctx, uid, req.Allergies, req.Dislikes)
	if err != nil {
		return err
	}

	if req.Prompt == "" && req.RegenerateSection == "" {
		result, err := s.deps.Diet.GenerateSuggestions(ctx, uid, p)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, suggestionsResponse{
			Success:        true,
			Suggestions:    result.Suggestions,
			Source:         result.Source,
			FallbackReason: result.Reason,
		})
	}

	plan, err := s.deps.Diet.GeneratePlan(ctx, diet.PlanRequest{
		UserID:            uid,
		Prompt:            req.Prompt,
		RegenerateSection: req.RegenerateSection,
		CurrentPlan:       req.CurrentPlan,
		Preferences:       p,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, planResponse{Success: true, Suggestions: plan})
}

// preferences merges the request's lists with the user's stored set.
func (s *Server) preferences(ctx context.Context, uid string, allergies, dislikes []string) (prefs.Set, error) {
	p := prefs.Merge(allergies, dislikes)
	if s.deps.Preferences == nil {
		return p, nil
	}
	stored, err := s.deps.Preferences.Get(ctx, uid)
	if err != nil {
		return prefs.Set{}, err
	}
	for _, a := range stored.Allergies {
		p.Add(prefs.Allergy, a)
	}
	for _, d := range stored.Dislikes {
		p.Add(prefs.Dislike, d)
	}
	return p, nil
}

func (s *Server) saveDietPlan(c echo.Context) error {
	var req savePlanRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	uid, err := userID(c, req.UserID)
	if err != nil {
		return err
	}
	plans, err := s.deps.Diet.SavePlan(c.Request().Context(), uid, req.Plan)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, plansResponse{Success: true, Plans: plans})
}

func (s *Server) listSuggestions(c echo.Context) error {
	uid, err := userID(c, c.QueryParam("userId"))
	if err != nil {
		return err
	}
	suggestions, err := s.deps.Diet.Suggestions(c.Request().Context(), uid, 20)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, suggestions)
}

func (s *Server) listPlans(c echo.Context) error {
	uid, err := userID(c, c.QueryParam("userId"))
	if err != nil {
		return err
	}
	plans, err := s.deps.Diet.Plans(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, plans)
}

// analyzeReport summarizes a report and stores it when the caller is known.
func (s *Server) analyzeReport(c echo.Context) error {
	var req analyzeRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	summary, err := s.deps.Analyzer.Analyze(ctx, report.AnalyzeRequest{FileName: req.FileName, FileURL: req.FileURL})
	if err != nil {
		return err
	}

	if uid, err := userID(c, req.UserID); err == nil && s.deps.Reports != nil {
		if _, err := s.deps.Reports.Save(ctx, uid, req.FileName, summary); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusOK, analyzeResponse{Summary: summary})
}

func (s *Server) listReports(c echo.Context) error {
	uid, err := userID(c, c.QueryParam("userId"))
	if err != nil {
		return err
	}
	reports, err := s.deps.Reports.ListByUser(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reports)
}

func (s *Server) healthChat(c echo.Context) error {
	var req chatRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	uid, err := userID(c, req.UserID)
	if err != nil {
		return err
	}
	reply, err := s.deps.Chat.Send(c.Request().Context(), uid, req.ChatID, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, chatResponse{Response: reply.Response, ChatID: reply.ChatID})
}

func (s *Server) listChats(c echo.Context) error {
	uid, err := userID(c, c.QueryParam("userId"))
	if err != nil {
		return err
	}
	chats, err := s.deps.Chats.ListByUser(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, chats)
}

func (s *Server) listMessages(c echo.Context) error {
	uid, err := userID(c, c.QueryParam("userId"))
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	chatID := c.Param("chatId")
	if _, err := s.deps.Chats.Get(ctx, uid, chatID); err != nil {
		return err
	}
	messages, err := s.deps.Chats.Messages(ctx, chatID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messages)
}

func (s *Server) health(c echo.Context) error {
	resp := healthResponse{
		Status:   "healthy",
		Database: "ok",
		System:   metrics.GetSysHealth(s.deps.DataPath),
	}
	if s.deps.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.DB.Ping(ctx); err != nil {
			s.logger.Warn("database ping failed", zap.Error(err))
			resp.Status = "unhealthy"
			resp.Database = err.Error()
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
	}
	return c.JSON(http.StatusOK, resp)
}
