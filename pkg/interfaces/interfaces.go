package interfaces

import (
	"context"
	"time"
)

// LLM provides language model capabilities
type LLM interface {
	Invoke(ctx context.Context, prompt string, options *LLMOptions) (string, error)
	Name() string
}

// ChatLLM is an LLM that also accepts a full conversation
type ChatLLM interface {
	LLM
	InvokeWithMessages(ctx context.Context, messages []LLMMessage, options *LLMOptions) (string, error)
}

// LLMMessage represents a message in a conversation
type LLMMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// LLMOptions contains options for LLM invocations. Nil fields keep the
// provider default.
type LLMOptions struct {
	Temperature   *float64 `json:"temperature,omitempty"`
	MaxTokens     *int     `json:"max_tokens,omitempty"`
	TopP          *float64 `json:"top_p,omitempty"`
	TopK          *int     `json:"top_k,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`
	// MaxTurns bounds the agentic turns of CLI providers
	MaxTurns     *int    `json:"max_turns,omitempty"`
	SystemPrompt *string `json:"system_prompt,omitempty"`
	// WorkDir is where CLI providers run; empty means the provider default
	WorkDir string `json:"work_dir,omitempty"`
}

// Analyzer is the batch analysis orchestrator
type Analyzer interface {
	Analyze(ctx context.Context, path string) error
	Stats() AnalyzerStats
}

// AnalyzerStats contains statistics about a batch analysis
type AnalyzerStats struct {
	TotalFiles     int           `json:"total_files"`
	ProcessedFiles int           `json:"processed_files"`
	FailedFiles    int           `json:"failed_files"`
	TotalRows      int           `json:"total_rows"`
	WrittenFiles   int           `json:"written_files"`
	ProcessingTime time.Duration `json:"processing_time"`
	AverageFile    time.Duration `json:"average_file_time"`
}

// Publisher receives events about running analyses
type Publisher interface {
	Publish(analysisID string, event any)
}
