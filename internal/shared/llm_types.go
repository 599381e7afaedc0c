package shared

import (
	"time"
)

// TokenUsage tracks the tokens consumed by a request.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// AgentMeta holds operational metadata for one completion call made on behalf
// of a feature (diet suggestions, plan, chat, report).
type AgentMeta struct {
	AgentName string
	Usage     TokenUsage
	Latency   time.Duration
}

// MetaRecorder persists AgentMeta. Implemented by the metrics store.
type MetaRecorder interface {
	RecordMeta(meta AgentMeta) error
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordMeta(AgentMeta) error { return nil }
