package llm

import (
	"context"

	"healthmate/internal/config"

	"go.uber.org/zap"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewFromConfig returns the generator selected by LLM_PROVIDER and a Closer
// that releases its resources.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (TextGenerator, Closer, error) {
	if cfg.LLMProvider == config.ProviderGemini {
		c, err := NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	}
	return NewGatewayClient(cfg, logger), nopCloser{}, nil
}
