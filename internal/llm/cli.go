package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"agency-insights/internal/config"
	"agency-insights/pkg/interfaces"
)

const defaultCLITimeout = 30 * time.Minute

// CLIResult is the captured outcome of one CLI run
type CLIResult struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// ClaudeCLI runs prompts through the claude command line tool
type ClaudeCLI struct {
	path       string
	args       []string
	model      string
	apiKey     string
	pathPrefix string
	workDir    string
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewClaudeCLI creates a CLI provider. The API key is required.
func NewClaudeCLI(cfg *config.LLMConfig, logger zerolog.Logger) (*ClaudeCLI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("claude-cli: %w", ErrMissingAPIKey)
	}
	path := cfg.CLIPath
	if path == "" {
		path = "claude"
	}
	timeout := time.Duration(cfg.TimeoutSeconds * float64(time.Second))
	if timeout <= 0 {
		timeout = defaultCLITimeout
	}
	return &ClaudeCLI{
		path:       path,
		args:       append([]string(nil), cfg.CLIArgs...),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		pathPrefix: cfg.PathPrefix,
		timeout:    timeout,
		logger:     logger.With().Str("component", "claude-cli").Logger(),
	}, nil
}

// Name returns the provider name
func (c *ClaudeCLI) Name() string { return "claude-cli" }

// WithWorkDir returns a copy of the provider that runs in dir
func (c *ClaudeCLI) WithWorkDir(dir string) *ClaudeCLI {
	cp := *c
	cp.workDir = dir
	return &cp
}

// Invoke runs the prompt in print mode and returns stdout. A non-zero exit
// code is an error carrying stderr.
func (c *ClaudeCLI) Invoke(ctx context.Context, prompt string, options *interfaces.LLMOptions) (string, error) {
	args := []string{"--print"}
	workDir := c.workDir
	if options != nil {
		if options.MaxTurns != nil {
			args = append(args, "--max-turns", strconv.Itoa(*options.MaxTurns))
		}
		if options.SystemPrompt != nil && *options.SystemPrompt != "" {
			args = append(args, "--append-system-prompt", *options.SystemPrompt)
		}
		if options.WorkDir != "" {
			workDir = options.WorkDir
		}
	}
	if c.model != "" {
		args = append(args, "--model", c.model)
	}

	res, err := c.run(ctx, workDir, prompt, args...)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("claude-cli exited with code %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	out := strings.TrimSpace(res.Stdout)
	if out == "" {
		return "", fmt.Errorf("claude-cli: %w", ErrEmptyResponse)
	}
	return out, nil
}

// Run executes the CLI with the configured arguments and the prompt as the
// last argument. A non-zero exit code is reported in the result, not as an error.
func (c *ClaudeCLI) Run(ctx context.Context, prompt string) (*CLIResult, error) {
	return c.run(ctx, c.workDir, prompt)
}

func (c *ClaudeCLI) run(ctx context.Context, workDir, prompt string, extra ...string) (*CLIResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	bin, err := LookPath(c.path, c.pathPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", c.path, err)
	}
	args := append(append(append([]string(nil), c.args...), extra...), prompt)
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = workDir
	cmd.Env = c.environ()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Info().
		Str("cli", c.path).
		Str("work_dir", workDir).
		Dur("timeout", c.timeout).
		Int("prompt_chars", len(prompt)).
		Msg("running CLI")

	start := time.Now()
	err = cmd.Run()
	res := &CLIResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		c.logger.Error().Dur("timeout", c.timeout).Msg("CLI timed out")
		return res, fmt.Errorf("claude-cli after %s: %w", c.timeout, ErrTimeout)
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case err != nil:
		return res, fmt.Errorf("failed to run %s: %w", c.path, err)
	}

	c.logger.Info().
		Int("exit_code", res.ExitCode).
		Int("stdout_chars", len(res.Stdout)).
		Int("stderr_chars", len(res.Stderr)).
		Dur("duration", res.Duration).
		Msg("CLI completed")
	return res, nil
}

// LookPath resolves a CLI name the way the child process sees it: the
// directories of prefix first, then the process PATH. Names containing a
// path separator are used as given.
func LookPath(name, prefix string) (string, error) {
	if name == "" {
		name = "claude"
	}
	if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		return exec.LookPath(name)
	}
	for _, dir := range filepath.SplitList(prefix) {
		if dir == "" {
			continue
		}
		if bin, err := exec.LookPath(filepath.Join(dir, name)); err == nil {
			return filepath.Abs(bin)
		}
	}
	return exec.LookPath(name)
}

func (c *ClaudeCLI) environ() []string {
	env := make([]string, 0, len(os.Environ())+2)
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "ANTHROPIC_API_KEY=") || (c.pathPrefix != "" && strings.HasPrefix(kv, "PATH=")) {
			continue
		}
		env = append(env, kv)
	}
	env = append(env, "ANTHROPIC_API_KEY="+c.apiKey)
	if c.pathPrefix != "" {
		env = append(env, "PATH="+c.pathPrefix+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
	return env
}
