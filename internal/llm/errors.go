// Package llm runs prompts against the configured language model provider
package llm

import "errors"

var (
	// ErrTimeout is returned when a provider does not answer in time
	ErrTimeout = errors.New("llm invocation timed out")
	// ErrMissingAPIKey is returned when a provider needs a key that is not configured
	ErrMissingAPIKey = errors.New("api key is not configured")
	// ErrUnsupportedProvider is returned by the factory for unknown providers
	ErrUnsupportedProvider = errors.New("unsupported LLM provider")
	// ErrEmptyResponse is returned when a provider answers with no text
	ErrEmptyResponse = errors.New("received empty response")
)
