package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"healthmate/internal/llm"
	"healthmate/internal/metrics"
	"healthmate/internal/shared"

	"go.uber.org/zap"
)

const agentChat = "HealthChat"

// historyLimit caps how many earlier messages are replayed to the model.
const historyLimit = 20

const titleRunes = 50

const systemPrompt = `You are HealthMate AI, a friendly and knowledgeable health assistant. Answer questions about symptoms, medications, nutrition, fitness and general wellbeing in clear, simple language.

Always remind the user that your answers are general information and not a diagnosis, and recommend seeing a healthcare professional for anything serious, persistent or urgent. If the user describes an emergency, tell them to contact emergency services immediately.`

// ErrEmptyMessage is returned when the message is blank.
var ErrEmptyMessage = errors.New("message is required")

// Store is what the Assistant needs from persistence.
type Store interface {
	Create(ctx context.Context, userID string) (Chat, error)
	Get(ctx context.Context, userID, chatID string) (Chat, error)
	Messages(ctx context.Context, chatID string) ([]Message, error)
	AddMessage(ctx context.Context, chatID, role, content string) (Message, error)
	Rename(ctx context.Context, chatID, title string) error
}

// Reply is the assistant's answer and the chat it belongs to.
type Reply struct {
	ChatID   string
	Response string
}

// Assistant answers health questions within a persisted conversation.
type Assistant struct {
	textGen  llm.TextGenerator
	store    Store
	recorder shared.MetaRecorder
	logger   *zap.Logger
}

// NewAssistant creates a new Assistant. recorder may be nil.
func NewAssistant(textGen llm.TextGenerator, store Store, recorder shared.MetaRecorder, logger *zap.Logger) *Assistant {
	if recorder == nil {
		recorder = shared.NopRecorder{}
	}
	return &Assistant{textGen: textGen, store: store, recorder: recorder, logger: logger}
}

// Send stores the user's message, asks the model with the conversation so far
// and stores the answer. An empty chatID starts a new chat, titled after the
// first message.
func (a *Assistant) Send(ctx context.Context, userID, chatID, message string) (Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{}, ErrEmptyMessage
	}

	var c Chat
	var err error
	if chatID == "" {
		c, err = a.store.Create(ctx, userID)
	} else {
		c, err = a.store.Get(ctx, userID, chatID)
	}
	if err != nil {
		return Reply{}, err
	}

	history, err := a.store.Messages(ctx, c.ID)
	if err != nil {
		return Reply{}, err
	}
	if _, err := a.store.AddMessage(ctx, c.ID, string(llm.RoleUser), message); err != nil {
		return Reply{}, err
	}

	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: message})

	start := time.Now()
	resp, err := a.textGen.GenerateContent(ctx, msgs)
	latency := time.Since(start)
	metrics.ObserveCompletion(agentChat, latency.Seconds(), err)
	if err != nil {
		return Reply{}, err
	}
	if recErr := a.recorder.RecordMeta(shared.AgentMeta{AgentName: agentChat, Usage: resp.Usage, Latency: latency}); recErr != nil {
		a.logger.Warn("failed to record usage", zap.String("agent", agentChat), zap.Error(recErr))
	}

	if _, err := a.store.AddMessage(ctx, c.ID, string(llm.RoleAssistant), resp.Content); err != nil {
		return Reply{}, err
	}

	if len(history) == 0 && c.Title == DefaultTitle {
		if err := a.store.Rename(ctx, c.ID, Title(message)); err != nil {
			a.logger.Warn("failed to retitle chat", zap.String("chat_id", c.ID), zap.Error(err))
		}
	}

	return Reply{ChatID: c.ID, Response: resp.Content}, nil
}

// Title derives a chat title from its first message.
func Title(message string) string {
	r := []rune(strings.TrimSpace(message))
	if len(r) > titleRunes {
		r = r[:titleRunes]
	}
	return string(r)
}
