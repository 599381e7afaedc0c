package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"healthmate/internal/auth"
	"healthmate/internal/chat"
	"healthmate/internal/diet"
	"healthmate/internal/metrics"
	"healthmate/internal/prefs"
	"healthmate/internal/report"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// CORS header values sent on every response.
const (
	allowOrigin  = "*"
	allowHeaders = "authorization, x-client-info, apikey, content-type"
	allowMethods = "POST, OPTIONS"
)

const userIDKey = "userID"

// DietService is the diet surface the handlers use.
type DietService interface {
	GenerateSuggestions(ctx context.Context, userID string, p prefs.Set) (diet.SuggestionsResult, error)
	GeneratePlan(ctx context.Context, req diet.PlanRequest) (string, error)
	SavePlan(ctx context.Context, userID, content string) ([]diet.Plan, error)
	Suggestions(ctx context.Context, userID string, limit int) ([]diet.Suggestion, error)
	Plans(ctx context.Context, userID string) ([]diet.Plan, error)
}

// ChatService answers health questions.
type ChatService interface {
	Send(ctx context.Context, userID, chatID, message string) (chat.Reply, error)
}

// ChatStore lists a user's conversations.
type ChatStore interface {
	ListByUser(ctx context.Context, userID string) ([]chat.Chat, error)
	Get(ctx context.Context, userID, chatID string) (chat.Chat, error)
	Messages(ctx context.Context, chatID string) ([]chat.Message, error)
}

// ReportAnalyzer summarizes uploaded reports.
type ReportAnalyzer interface {
	Analyze(ctx context.Context, req report.AnalyzeRequest) (string, error)
}

// ReportStore persists and lists analyzed reports.
type ReportStore interface {
	Save(ctx context.Context, userID, fileName, summary string) (report.HealthReport, error)
	ListByUser(ctx context.Context, userID string) ([]report.HealthReport, error)
}

// PreferenceStore holds a user's standing allergies and dislikes.
type PreferenceStore interface {
	Get(ctx context.Context, ownerID string) (prefs.Set, error)
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services behind the HTTP surface. Verifier, Webhook and
// Preferences are optional.
type Deps struct {
	Diet        DietService
	Chat        ChatService
	Chats       ChatStore
	Analyzer    ReportAnalyzer
	Reports     ReportStore
	Preferences PreferenceStore
	DB          Pinger
	Verifier    *auth.Verifier
	Webhook     http.Handler
	DataPath    string
}

// Server is the HealthMate HTTP API.
type Server struct {
	echo     *echo.Echo
	deps     Deps
	validate *validator.Validate
	logger   *zap.Logger
}

// NewServer builds the router.
func NewServer(deps Deps, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
	e.HTTPErrorHandler = s.handleError
	e.Use(s.recordRequest, corsMiddleware)

	e.GET("/health", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	if deps.Webhook != nil {
		e.POST("/telegram/webhook", echo.WrapHandler(deps.Webhook))
	}

	authed := s.authenticate
	e.POST("/generate-diet-suggestions", s.generateDietSuggestions, authed)
	e.POST("/save-diet-plan", s.saveDietPlan, authed)
	e.GET("/diet-suggestions", s.listSuggestions, authed)
	e.GET("/diet-plans", s.listPlans, authed)
	e.POST("/analyze-report", s.analyzeReport, authed)
	e.GET("/reports", s.listReports, authed)
	e.POST("/health-chat", s.healthChat, authed)
	e.GET("/chats", s.listChats, authed)
	e.GET("/chats/:chatId/messages", s.listMessages, authed)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// corsMiddleware adds the CORS headers and answers preflight requests with an
// empty 200, whatever the path or payload.
func corsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Response().Header()
		h.Set("Access-Control-Allow-Origin", allowOrigin)
		h.Set("Access-Control-Allow-Headers", allowHeaders)
		h.Set("Access-Control-Allow-Methods", allowMethods)
		if c.Request().Method == http.MethodOptions {
			return c.NoContent(http.StatusOK)
		}
		return next(c)
	}
}

func (s *Server) recordRequest(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(c.Response().Status)).Inc()
		return nil
	}
}

// authenticate resolves the caller from the bearer token when a verifier is
// configured. Without one the user id comes from the request.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.deps.Verifier == nil {
			return next(c)
		}
		userID, err := s.deps.Verifier.UserID(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return err
		}
		c.Set(userIDKey, userID)
		return next(c)
	}
}

// handleError writes every failure as 500 {error}. Routing misses keep their
// own status.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code == http.StatusNotFound || he.Code == http.StatusMethodNotAllowed {
			status = he.Code
		}
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}

	s.logger.Error("request failed",
		zap.String("method", c.Request().Method),
		zap.String("path", c.Request().URL.Path),
		zap.Error(err),
	)
	if err := c.JSON(status, errorResponse{Error: msg}); err != nil {
		s.logger.Error("failed to write error response", zap.Error(err))
	}
}
