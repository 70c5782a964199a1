package llm

import (
	"fmt"

	"github.com/rs/zerolog"

	"agency-insights/internal/config"
	"agency-insights/pkg/interfaces"
)

// Factory creates LLM instances based on configuration
type Factory struct {
	logger zerolog.Logger
}

// NewFactory creates a new LLM factory
func NewFactory(logger zerolog.Logger) *Factory {
	return &Factory{logger: logger}
}

// Create creates an LLM instance based on the configuration. A positive
// requests_per_second wraps it in a rate limiter.
func (f *Factory) Create(cfg *config.LLMConfig) (interfaces.LLM, error) {
	var (
		l   interfaces.LLM
		err error
	)
	switch cfg.Provider {
	case "claude-cli":
		l, err = NewClaudeCLI(cfg, f.logger)
	case "openai":
		l, err = NewOpenAILLM(cfg)
	case "ollama":
		l, err = NewOllamaLLM(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.RequestsPerSecond > 0 {
		l = NewLimited(l, cfg.RequestsPerSecond)
	}
	return l, nil
}

// CreateWithConfig is a standalone function to create LLMs
func CreateWithConfig(cfg *config.LLMConfig, logger zerolog.Logger) (interfaces.LLM, error) {
	return NewFactory(logger).Create(cfg)
}

// CLI returns the claude CLI behind l, unwrapping a limiter
func CLI(l interfaces.LLM) (*ClaudeCLI, bool) {
	if lim, ok := l.(*Limited); ok {
		l = lim.Unwrap()
	}
	c, ok := l.(*ClaudeCLI)
	return c, ok
}
