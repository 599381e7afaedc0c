package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"healthmate/internal/chat"
	"healthmate/internal/config"
	"healthmate/internal/diet"
	"healthmate/internal/metrics"
	"healthmate/internal/prefs"
	"healthmate/internal/session"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// sessionTTL is how long a draft plan and linked chat survive without activity.
const sessionTTL = 7 * 24 * time.Hour

// contextBloatTokens triggers an admin alert for oversized prompts.
const contextBloatTokens = 4000

const helpText = `🩺 *HealthMate*

/suggest - five diet and lifestyle suggestions
/plan <goal> - a full-day meal plan
/regen <Breakfast|Lunch|Dinner|Snacks> - alternatives for one section
/save - keep the current plan
/plans - your saved plans
/allergy add|remove <food>
/dislike add|remove <food>
/prefs - show your preferences

Anything else is answered by the health assistant.`

// Sender is the part of the Telegram API the bot uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// DietService is the diet surface the bot drives.
type DietService interface {
	GenerateSuggestions(ctx context.Context, userID string, p prefs.Set) (diet.SuggestionsResult, error)
	GeneratePlan(ctx context.Context, req diet.PlanRequest) (string, error)
	SavePlan(ctx context.Context, userID, content string) ([]diet.Plan, error)
	Plans(ctx context.Context, userID string) ([]diet.Plan, error)
}

// ChatService answers free-form health questions.
type ChatService interface {
	Send(ctx context.Context, userID, chatID, message string) (chat.Reply, error)
}

// PreferenceStore keeps each user's allergies and dislikes.
type PreferenceStore interface {
	Get(ctx context.Context, ownerID string) (prefs.Set, error)
	Put(ctx context.Context, ownerID string, s prefs.Set) error
}

// SessionStore keeps the draft plan and linked chat between messages.
type SessionStore interface {
	Load(ctx context.Context, userID string) (SessionContextData, error)
	Put(ctx context.Context, userID string, data SessionContextData, ttl time.Duration) error
}

// UsageReporter summarizes recorded completion usage.
type UsageReporter interface {
	GetDailyUsage(ctx context.Context, days int) ([]metrics.DailyUsage, error)
}

// Bot serves HealthMate over a Telegram webhook.
type Bot struct {
	api      Sender
	diet     DietService
	chat     ChatService
	prefs    PreferenceStore
	sessions SessionStore
	usage    UsageReporter
	cfg      *config.Config
	logger   *zap.Logger

	// process handles a message; replaced in tests to run synchronously.
	process func(msg *tgbotapi.Message)
}

// Deps are the services behind the bot.
type Deps struct {
	Diet     DietService
	Chat     ChatService
	Prefs    PreferenceStore
	Sessions SessionStore
	Usage    UsageReporter
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(cfg *config.Config, deps Deps, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	logger.Info("authorized on telegram", zap.String("account", api.Self.UserName))

	wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url %s: %w", cfg.TelegramWebhookURL, err)
	}
	resp, err := api.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	logger.Info("webhook set", zap.String("response", resp.Description))

	return newBot(api, cfg, deps, logger), nil
}

func newBot(api Sender, cfg *config.Config, deps Deps, logger *zap.Logger) *Bot {
	b := &Bot{
		api:      api,
		diet:     deps.Diet,
		chat:     deps.Chat,
		prefs:    deps.Prefs,
		sessions: deps.Sessions,
		usage:    deps.Usage,
		cfg:      cfg,
		logger:   logger,
	}
	b.process = func(msg *tgbotapi.Message) { go b.processMessage(msg) }
	return b
}

// ServeHTTP handles webhook updates.
func (b *Bot) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		b.logger.Warn("error parsing update", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	if update.Message == nil || update.Message.From == nil {
		return
	}

	if !b.isAllowed(update.Message.From.ID) {
		b.logger.Warn("unauthorized access attempt",
			zap.Int64("user_id", update.Message.From.ID),
			zap.String("username", update.Message.From.UserName),
		)
		return
	}

	b.process(update.Message)
}

// isAllowed reports whether id may use the bot. An empty allow list admits everyone.
func (b *Bot) isAllowed(id int64) bool {
	if len(b.cfg.TelegramAllowedUserIDs) == 0 {
		return true
	}
	for _, allowed := range b.cfg.TelegramAllowedUserIDs {
		if id == allowed {
			return true
		}
	}
	return false
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	userID := fmt.Sprintf("%d", msg.From.ID)
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		b.reply(msg.Chat.ID, helpText)
	case "suggest":
		b.handleSuggest(ctx, msg.Chat.ID, userID)
	case "plan":
		b.handlePlan(ctx, msg.Chat.ID, userID, args)
	case "regen":
		b.handleRegenerate(ctx, msg.Chat.ID, userID, args)
	case "save":
		b.handleSave(ctx, msg.Chat.ID, userID)
	case "plans":
		b.handlePlans(ctx, msg.Chat.ID, userID)
	case "allergy":
		b.handlePreference(ctx, msg.Chat.ID, userID, prefs.Allergy, args)
	case "dislike":
		b.handlePreference(ctx, msg.Chat.ID, userID, prefs.Dislike, args)
	case "prefs":
		b.handleShowPreferences(ctx, msg.Chat.ID, userID)
	case "metrics":
		if msg.From.ID != b.cfg.AdminTelegramID {
			b.reply(msg.Chat.ID, "⛔ *Access Denied*: Admin only.")
			return
		}
		b.handleMetricsCommand(ctx, msg.Chat.ID)
	case "":
		b.handleChat(ctx, msg.Chat.ID, userID, msg.Text)
	default:
		b.reply(msg.Chat.ID, helpText)
	}
}

func (b *Bot) handleSuggest(ctx context.Context, chatID int64, userID string) {
	sent := b.reply(chatID, "🥗 *Thinking...*")

	p, err := b.prefs.Get(ctx, userID)
	if err != nil {
		b.editError(chatID, sent, "loading preferences", err)
		return
	}
	result, err := b.diet.GenerateSuggestions(ctx, userID, p)
	if err != nil {
		b.editError(chatID, sent, "generating suggestions", err)
		return
	}
	b.edit(chatID, sent, formatSuggestions(result))
}

func (b *Bot) handlePlan(ctx context.Context, chatID int64, userID, goal string) {
	if goal == "" {
		b.reply(chatID, "Tell me your goal, e.g. `/plan more energy in the afternoon`")
		return
	}
	sent := b.reply(chatID, "🧑‍🍳 *Thinking...* \n(Putting your plan together)")

	p, err := b.prefs.Get(ctx, userID)
	if err != nil {
		b.editError(chatID, sent, "loading preferences", err)
		return
	}
	plan, err := b.diet.GeneratePlan(ctx, diet.PlanRequest{UserID: userID, Prompt: goal, Preferences: p})
	if err != nil {
		b.editError(chatID, sent, "generating plan", err)
		return
	}

	b.updateSession(ctx, userID, func(d *SessionContextData) {
		d.Goal = goal
		d.DraftPlan = plan
	})
	b.edit(chatID, sent, plan+"\n\n_Use /save to keep it or /regen <section> for alternatives._")
}

func (b *Bot) handleRegenerate(ctx context.Context, chatID int64, userID, section string) {
	section = sectionName(section)
	if !diet.ValidSection(section) {
		b.reply(chatID, "Pick a section: Breakfast, Lunch, Dinner or Snacks.")
		return
	}

	data, err := b.sessions.Load(ctx, userID)
	if err != nil {
		b.logger.Warn("failed to load session", zap.String("user_id", userID), zap.Error(err))
	}
	if data.Goal == "" {
		b.reply(chatID, "Generate a plan first with /plan <goal>.")
		return
	}
	sent := b.reply(chatID, fmt.Sprintf("🔄 *Finding new %s options...*", section))

	p, err := b.prefs.Get(ctx, userID)
	if err != nil {
		b.editError(chatID, sent, "loading preferences", err)
		return
	}
	plan, err := b.diet.GeneratePlan(ctx, diet.PlanRequest{
		UserID:            userID,
		Prompt:            data.Goal,
		RegenerateSection: section,
		CurrentPlan:       data.DraftPlan,
		Preferences:       p,
	})
	if err != nil {
		b.editError(chatID, sent, "regenerating "+section, err)
		return
	}

	b.updateSession(ctx, userID, func(d *SessionContextData) { d.DraftPlan = plan })
	b.edit(chatID, sent, plan)
}

func (b *Bot) handleSave(ctx context.Context, chatID int64, userID string) {
	data, err := b.sessions.Load(ctx, userID)
	if err != nil {
		b.logger.Warn("failed to load session", zap.String("user_id", userID), zap.Error(err))
	}
	if data.DraftPlan == "" {
		b.reply(chatID, "Nothing to save yet. Generate a plan with /plan <goal>.")
		return
	}

	plans, err := b.diet.SavePlan(ctx, userID, data.DraftPlan)
	if err != nil {
		b.replyError(chatID, "saving plan", err)
		return
	}
	b.reply(chatID, fmt.Sprintf("✅ *Plan saved!* You have %d saved plan(s).", len(plans)))
}

func (b *Bot) handlePlans(ctx context.Context, chatID int64, userID string) {
	plans, err := b.diet.Plans(ctx, userID)
	if err != nil {
		b.replyError(chatID, "loading plans", err)
		return
	}
	b.reply(chatID, formatPlanList(plans))
}

func (b *Bot) handlePreference(ctx context.Context, chatID int64, userID string, kind prefs.Kind, args string) {
	action, item, _ := strings.Cut(args, " ")
	item = strings.TrimSpace(item)
	if item == "" || (action != "add" && action != "remove") {
		b.reply(chatID, fmt.Sprintf("Usage: /%s add|remove <food>", kind))
		return
	}

	p, err := b.prefs.Get(ctx, userID)
	if err != nil {
		b.replyError(chatID, "loading preferences", err)
		return
	}

	var changed bool
	if action == "add" {
		changed = p.Add(kind, item)
	} else {
		changed = p.Remove(kind, item)
	}
	if !changed {
		b.reply(chatID, "No change.\n\n"+formatPreferences(p))
		return
	}

	if err := b.prefs.Put(ctx, userID, p); err != nil {
		b.replyError(chatID, "saving preferences", err)
		return
	}
	b.reply(chatID, formatPreferences(p))
}

func (b *Bot) handleShowPreferences(ctx context.Context, chatID int64, userID string) {
	p, err := b.prefs.Get(ctx, userID)
	if err != nil {
		b.replyError(chatID, "loading preferences", err)
		return
	}
	b.reply(chatID, formatPreferences(p))
}

// handleChat forwards free text to the health assistant, continuing the
// user's current conversation.
func (b *Bot) handleChat(ctx context.Context, chatID int64, userID, text string) {
	data, err := b.sessions.Load(ctx, userID)
	if err != nil {
		b.logger.Warn("failed to load session", zap.String("user_id", userID), zap.Error(err))
	}

	reply, err := b.chat.Send(ctx, userID, data.ChatID, text)
	if errors.Is(err, chat.ErrNotFound) {
		reply, err = b.chat.Send(ctx, userID, "", text)
	}
	if err != nil {
		b.replyError(chatID, "answering", err)
		return
	}

	if reply.ChatID != data.ChatID {
		b.updateSession(ctx, userID, func(d *SessionContextData) { d.ChatID = reply.ChatID })
	}
	msg := tgbotapi.NewMessage(chatID, reply.Response)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send reply", zap.Error(err))
	}
}

func (b *Bot) handleMetricsCommand(ctx context.Context, chatID int64) {
	usage, err := b.usage.GetDailyUsage(ctx, 7)
	if err != nil {
		b.reply(chatID, "❌ Error fetching metrics.")
		return
	}
	b.reply(chatID, formatUsageReport(usage, metrics.GetSysHealth(b.cfg.DataPath)))
}

// updateSession applies fn to the stored session data and saves it.
func (b *Bot) updateSession(ctx context.Context, userID string, fn func(*SessionContextData)) {
	data, err := b.sessions.Load(ctx, userID)
	if err != nil {
		b.logger.Warn("failed to load session", zap.String("user_id", userID), zap.Error(err))
	}
	fn(&data)
	if err := b.sessions.Put(ctx, userID, data, sessionTTL); err != nil {
		b.logger.Warn("failed to save session", zap.String("user_id", userID), zap.Error(err))
	}
}

// RecordAlert notifies the admin when a completion used an unusually large prompt.
func (b *Bot) RecordAlert(agent string, promptTokens int, model string) {
	if promptTokens <= contextBloatTokens {
		return
	}
	b.sendAdminAlert(fmt.Sprintf("⚠️ *Context Bloat Alert*\nAgent: %s\nModel: %s\nPrompt Tokens: %d", agent, model, promptTokens))
}

func (b *Bot) sendAdminAlert(text string) {
	if b.cfg.AdminTelegramID == 0 {
		return
	}
	b.reply(b.cfg.AdminTelegramID, text)
}

func (b *Bot) reply(chatID int64, text string) int {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	sent, err := b.api.Send(msg)
	if err != nil {
		b.logger.Error("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
		return 0
	}
	return sent.MessageID
}

// edit replaces a status message, or sends a new one when it was never delivered.
func (b *Bot) edit(chatID int64, messageID int, text string) {
	if messageID == 0 {
		b.reply(chatID, text)
		return
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Error("failed to edit message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) editError(chatID int64, messageID int, action string, err error) {
	b.logger.Error("request failed", zap.String("action", action), zap.Error(err))
	b.edit(chatID, messageID, errorText(action, err))
}

func (b *Bot) replyError(chatID int64, action string, err error) {
	b.logger.Error("request failed", zap.String("action", action), zap.Error(err))
	b.reply(chatID, errorText(action, err))
}

func errorText(action string, err error) string {
	if errors.Is(err, session.ErrBusy) {
		return "⏳ Still working on your previous request. Try again in a moment."
	}
	safeErr := strings.ReplaceAll(err.Error(), "`", "'")
	return fmt.Sprintf("❌ *Error %s:*\n```\n%v\n```", action, safeErr)
}

// sectionName title-cases a section argument so "lunch" matches "Lunch".
func sectionName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
