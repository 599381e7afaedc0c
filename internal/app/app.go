package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"healthmate/internal/api"
	"healthmate/internal/auth"
	"healthmate/internal/chat"
	"healthmate/internal/config"
	"healthmate/internal/database"
	"healthmate/internal/diet"
	"healthmate/internal/llm"
	"healthmate/internal/metrics"
	"healthmate/internal/prefs"
	"healthmate/internal/report"
	"healthmate/internal/session"
	"healthmate/internal/shared"
	"healthmate/internal/telegram"

	"go.uber.org/zap"
)

// App holds the application's dependencies.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	db       *database.DB
	llmClose llm.Closer
	redis    *session.RedisLocker

	TextGen      llm.TextGenerator
	MetricsStore *metrics.Store
	Tracker      *session.Tracker
	Diet         *diet.Service
	Assistant    *chat.Assistant
	Chats        *chat.Repository
	Analyzer     *report.Analyzer
	Reports      *report.Repository
	Preferences  *prefs.Repository
	Sessions     *telegram.SessionRepository

	recorder *alertRecorder
}

// New connects the store, the completion client and the operation slot
// locker, and builds every service on top of them.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.NewDB(cfg.DBDriver, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	textGen, llmClose, err := llm.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize completion client: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, db: db, llmClose: llmClose, TextGen: textGen}

	var locker session.Locker = session.NewMemoryLocker()
	if cfg.RedisURL != "" {
		rl, err := session.NewRedisLocker(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = rl
		locker = rl
		logger.Info("using redis for operation slots")
	}

	a.MetricsStore = metrics.NewStore(db)
	a.recorder = &alertRecorder{next: a.MetricsStore}
	a.Tracker = session.NewTracker(locker, session.TTLFor(cfg.CompletionTimeout), logger)
	a.Preferences = prefs.NewRepository(db)
	a.Chats = chat.NewRepository(db)
	a.Reports = report.NewRepository(db)
	a.Sessions = telegram.NewSessionRepository(db)

	a.Diet = diet.NewService(textGen, diet.NewSuggestionRepository(db), diet.NewPlanRepository(db), a.Tracker, a.recorder, logger)
	a.Assistant = chat.NewAssistant(textGen, a.Chats, a.recorder, logger)
	a.Analyzer = report.NewAnalyzer(textGen, cfg.ReportsBaseURL, a.recorder, logger)

	return a, nil
}

// Handler builds the HTTP API, with the Telegram webhook mounted when a bot
// token is configured.
func (a *App) Handler() (http.Handler, error) {
	deps := api.Deps{
		Diet:        a.Diet,
		Chat:        a.Assistant,
		Chats:       a.Chats,
		Analyzer:    a.Analyzer,
		Reports:     a.Reports,
		Preferences: a.Preferences,
		DB:          a.db,
		DataPath:    a.cfg.DataPath,
	}
	if a.cfg.AuthJWTSecret != "" {
		deps.Verifier = auth.NewVerifier(a.cfg.AuthJWTSecret)
	}

	if a.cfg.TelegramBotToken != "" {
		bot, err := telegram.NewBot(a.cfg, telegram.Deps{
			Diet:     a.Diet,
			Chat:     a.Assistant,
			Prefs:    a.Preferences,
			Sessions: a.Sessions,
			Usage:    a.MetricsStore,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		a.recorder.setAlert(bot.RecordAlert)
		deps.Webhook = bot
	}

	return api.NewServer(deps, a.logger), nil
}

// Cleanup removes usage metrics older than days and expired bot sessions.
func (a *App) Cleanup(ctx context.Context, days int) (int64, int64, error) {
	metricRows, err := a.MetricsStore.Cleanup(ctx, days)
	if err != nil {
		return 0, 0, err
	}
	sessionRows, err := a.Sessions.CleanupExpired(ctx)
	if err != nil {
		return metricRows, 0, err
	}
	return metricRows, sessionRows, nil
}

// Close releases every connection the App opened.
func (a *App) Close() error {
	var errs []error
	if a.llmClose != nil {
		errs = append(errs, a.llmClose.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

// alertRecorder stores usage and forwards oversized prompts to an alert hook
// that is attached once the bot exists.
type alertRecorder struct {
	next shared.MetaRecorder

	mu    sync.RWMutex
	alert func(agent string, promptTokens int, model string)
}

func (r *alertRecorder) setAlert(fn func(agent string, promptTokens int, model string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alert = fn
}

func (r *alertRecorder) RecordMeta(meta shared.AgentMeta) error {
	r.mu.RLock()
	alert := r.alert
	r.mu.RUnlock()
	if alert != nil {
		alert(meta.AgentName, meta.Usage.PromptTokens, meta.Usage.Model)
	}
	return r.next.RecordMeta(meta)
}
