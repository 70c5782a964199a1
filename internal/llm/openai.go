package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"agency-insights/internal/config"
	"agency-insights/pkg/interfaces"
)

// OpenAILLM streams chat completions from an OpenAI compatible endpoint
type OpenAILLM struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAILLM creates a new OpenAI provider
func NewOpenAILLM(cfg *config.LLMConfig) (*OpenAILLM, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required for OpenAI LLM")
	}
	openaiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		openaiConfig.BaseURL = cfg.BaseURL
	}
	return &OpenAILLM{
		client:  openai.NewClientWithConfig(openaiConfig),
		model:   cfg.Model,
		timeout: time.Duration(cfg.TimeoutSeconds * float64(time.Second)),
	}, nil
}

// Name returns the provider name
func (o *OpenAILLM) Name() string { return "openai" }

// Invoke sends a prompt to the LLM and returns the response
func (o *OpenAILLM) Invoke(ctx context.Context, prompt string, options *interfaces.LLMOptions) (string, error) {
	messages := []interfaces.LLMMessage{
		{Role: "user", Content: prompt},
	}
	return o.InvokeWithMessages(ctx, messages, options)
}

// InvokeWithMessages streams the completion and concatenates the chunks
func (o *OpenAILLM) InvokeWithMessages(ctx context.Context, messages []interfaces.LLMMessage, options *interfaces.LLMOptions) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:  o.model,
		Stream: true,
	}
	if options != nil && options.SystemPrompt != nil && *options.SystemPrompt != "" {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: *options.SystemPrompt})
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if options != nil {
		if options.Temperature != nil {
			req.Temperature = float32(*options.Temperature)
		}
		if options.MaxTokens != nil {
			req.MaxTokens = *options.MaxTokens
		}
		if options.TopP != nil {
			req.TopP = float32(*options.TopP)
		}
		if len(options.StopSequences) > 0 {
			req.Stop = options.StopSequences
		}
	}

	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", o.wrap(ctx, err)
	}
	defer stream.Close()

	var b strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", o.wrap(ctx, err)
		}
		for _, choice := range resp.Choices {
			b.WriteString(choice.Delta.Content)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("openai: %w", ErrEmptyResponse)
	}
	return b.String(), nil
}

func (o *OpenAILLM) wrap(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("openai: %w", ErrTimeout)
	}
	return fmt.Errorf("openai request failed: %w", err)
}
