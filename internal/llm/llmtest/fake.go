// Package llmtest provides a scriptable LLM for tests
package llmtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"agency-insights/pkg/interfaces"
)

// DefaultResponse is returned when no canned response matches
const DefaultResponse = "fake response"

// Call records one invocation
type Call struct {
	Prompt  string
	Options *interfaces.LLMOptions
}

// FakeLLM implements interfaces.LLM for testing purposes. Canned answers
// match the prompt exactly or, failing that, by the longest key it contains.
type FakeLLM struct {
	mu        sync.RWMutex
	responses map[string]string
	errors    map[string]error
	delays    map[string]time.Duration
	fallback  string
	hook      func(prompt string, options *interfaces.LLMOptions)
	calls     []Call
}

// NewFakeLLM creates a new fake LLM
func NewFakeLLM() *FakeLLM {
	return &FakeLLM{
		responses: make(map[string]string),
		errors:    make(map[string]error),
		delays:    make(map[string]time.Duration),
		fallback:  DefaultResponse,
	}
}

// AddResponse adds a canned response for prompts matching key
func (f *FakeLLM) AddResponse(key, response string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[key] = response
}

// AddError makes prompts matching key fail
func (f *FakeLLM) AddError(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[key] = err
}

// AddDelay delays prompts matching key
func (f *FakeLLM) AddDelay(key string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays[key] = d
}

// SetDefault replaces the response used when nothing matches
func (f *FakeLLM) SetDefault(response string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallback = response
}

// OnInvoke registers a function run on every call before answering
func (f *FakeLLM) OnInvoke(hook func(prompt string, options *interfaces.LLMOptions)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hook = hook
}

// GetCallCount returns the number of calls made
func (f *FakeLLM) GetCallCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.calls)
}

// Calls returns every recorded call in order
func (f *FakeLLM) Calls() []Call {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]Call(nil), f.calls...)
}

// Name returns the provider name
func (f *FakeLLM) Name() string { return "fake" }

// Invoke answers from the canned responses
func (f *FakeLLM) Invoke(ctx context.Context, prompt string, options *interfaces.LLMOptions) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Prompt: prompt, Options: options})
	hook := f.hook
	delay, hasDelay := lookup(f.delays, prompt)
	err, hasErr := lookup(f.errors, prompt)
	resp, hasResp := lookup(f.responses, prompt)
	fallback := f.fallback
	f.mu.Unlock()

	if hook != nil {
		hook(prompt, options)
	}
	if hasDelay {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if hasErr {
		return "", err
	}
	if hasResp {
		return resp, nil
	}
	return fallback, nil
}

func lookup[T any](m map[string]T, prompt string) (T, bool) {
	if v, ok := m[prompt]; ok {
		return v, true
	}
	var (
		best  T
		found bool
		size  = -1
	)
	for k, v := range m {
		if len(k) > size && strings.Contains(prompt, k) {
			best, found, size = v, true, len(k)
		}
	}
	return best, found
}
