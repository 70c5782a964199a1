package llm

import (
	"context"

	"golang.org/x/time/rate"

	"agency-insights/pkg/interfaces"
)

// Limited throttles invocations of the wrapped LLM
type Limited struct {
	inner   interfaces.LLM
	limiter *rate.Limiter
}

// NewLimited allows rps invocations per second with a burst of one
func NewLimited(inner interfaces.LLM, rps float64) *Limited {
	return &Limited{inner: inner, limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

// Name returns the wrapped provider name
func (l *Limited) Name() string { return l.inner.Name() }

// Invoke blocks until the limiter allows the call
func (l *Limited) Invoke(ctx context.Context, prompt string, options *interfaces.LLMOptions) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return l.inner.Invoke(ctx, prompt, options)
}

// Unwrap returns the wrapped provider
func (l *Limited) Unwrap() interfaces.LLM { return l.inner }
