package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"agency-insights/internal/config"
	"agency-insights/pkg/interfaces"
)

// OllamaLLM implements the LLM interface for a local Ollama server
type OllamaLLM struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaLLM creates a new Ollama LLM instance
func NewOllamaLLM(cfg *config.LLMConfig) (*OllamaLLM, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base_url is required for Ollama LLM")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required for Ollama LLM")
	}

	return &OllamaLLM{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds * float64(time.Second)),
		},
	}, nil
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

// Name returns the provider name
func (o *OllamaLLM) Name() string { return "ollama" }

// Invoke sends a prompt to the LLM and returns the response
func (o *OllamaLLM) Invoke(ctx context.Context, prompt string, options *interfaces.LLMOptions) (string, error) {
	messages := []interfaces.LLMMessage{
		{Role: "user", Content: prompt},
	}
	return o.InvokeWithMessages(ctx, messages, options)
}

// InvokeWithMessages sends messages to /api/chat and returns the reply
func (o *OllamaLLM) InvokeWithMessages(ctx context.Context, messages []interfaces.LLMMessage, options *interfaces.LLMOptions) (string, error) {
	reqBody := ollamaRequest{Model: o.model}
	if options != nil && options.SystemPrompt != nil && *options.SystemPrompt != "" {
		reqBody.Messages = append(reqBody.Messages, ollamaMessage{Role: "system", Content: *options.SystemPrompt})
	}
	for _, msg := range messages {
		reqBody.Messages = append(reqBody.Messages, ollamaMessage{Role: msg.Role, Content: msg.Content})
	}
	if options != nil {
		reqBody.Options = buildOllamaOptions(options)
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", fmt.Errorf("ollama: %w", ErrTimeout)
		}
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	var out ollamaResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w, body: %s", err, string(body))
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, out.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}
	if out.Message.Content == "" {
		return "", fmt.Errorf("ollama: %w", ErrEmptyResponse)
	}
	return out.Message.Content, nil
}

// buildOllamaOptions converts LLMOptions to the Ollama options format
func buildOllamaOptions(opts *interfaces.LLMOptions) map[string]any {
	options := make(map[string]any)
	if opts.Temperature != nil {
		options["temperature"] = *opts.Temperature
	}
	if opts.MaxTokens != nil {
		options["num_predict"] = *opts.MaxTokens
	}
	if opts.TopP != nil {
		options["top_p"] = *opts.TopP
	}
	if opts.TopK != nil {
		options["top_k"] = *opts.TopK
	}
	if len(opts.StopSequences) > 0 {
		options["stop"] = opts.StopSequences
	}
	if len(options) == 0 {
		return nil
	}
	return options
}
