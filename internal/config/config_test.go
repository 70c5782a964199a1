package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "finalapi.csv", cfg.Dataset.Path)
	assert.Equal(t, 99999.0, cfg.Dataset.Sentinel)
	assert.True(t, cfg.Dataset.ReplaceSentinel)
	assert.Equal(t, "claude-cli", cfg.LLM.Provider)
	assert.Equal(t, 1800.0, cfg.LLM.TimeoutSeconds)
	assert.Equal(t, "agent_comm", cfg.Agents.CommDir)
	assert.Equal(t, []string{"research.md", "analysis.log", "error.log"}, cfg.Server.WatchFiles)
	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *AppConfig)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *AppConfig) {},
			wantErr: false,
		},
		{
			name:    "missing dataset path",
			mutate:  func(c *AppConfig) { c.Dataset.Path = "" },
			wantErr: true,
		},
		{
			name:    "unsupported provider",
			mutate:  func(c *AppConfig) { c.LLM.Provider = "bard" },
			wantErr: true,
		},
		{
			name:    "claude cli without binary",
			mutate:  func(c *AppConfig) { c.LLM.CLIPath = "" },
			wantErr: true,
		},
		{
			name: "ollama without base url",
			mutate: func(c *AppConfig) {
				c.LLM.Provider = "ollama"
				c.LLM.Model = "llama3.2"
			},
			wantErr: true,
		},
		{
			name: "ollama with base url",
			mutate: func(c *AppConfig) {
				c.LLM.Provider = "ollama"
				c.LLM.Model = "llama3.2"
				c.LLM.BaseURL = "http://localhost:11434"
			},
			wantErr: false,
		},
		{
			name:    "invalid concurrency",
			mutate:  func(c *AppConfig) { c.MaxConcurrency = 0 },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *AppConfig) { c.LogLevel = "chatty" },
			wantErr: true,
		},
		{
			name:    "multi character delimiter",
			mutate:  func(c *AppConfig) { c.Dataset.Delimiter = ";;" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := DefaultConfig()
	cfg.Dataset.Path = "agencies.csv"
	cfg.MaxConcurrency = 8
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "agencies.csv", loaded.Dataset.Path)
	assert.Equal(t, 8, loaded.MaxConcurrency)
}

func TestLoadYAMLConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
dataset:
  path: data/agencies.csv
llm:
  provider: openai
  model: gpt-4o-mini
  api_key: sk-test
max_concurrency: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data/agencies.csv", cfg.Dataset.Path)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 2, cfg.MaxConcurrency)
	// untouched sections keep their defaults
	assert.Equal(t, ":8000", cfg.Server.Address)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"ANTHROPIC_API_KEY": "anthropic-key",
		"OPENAI_API_KEY":    "openai-key",
	}
	getenv := func(k string) string { return env[k] }

	cfg := DefaultConfig()
	cfg.ApplyEnv(getenv)
	assert.Equal(t, "anthropic-key", cfg.LLM.APIKey)

	cfg = DefaultConfig()
	cfg.LLM.Provider = "openai"
	cfg.ApplyEnv(getenv)
	assert.Equal(t, "openai-key", cfg.LLM.APIKey)

	cfg = DefaultConfig()
	cfg.LLM.APIKey = "explicit"
	cfg.ApplyEnv(getenv)
	assert.Equal(t, "explicit", cfg.LLM.APIKey)
}

func TestStringMasksSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.APIKey = "secret123"

	out := cfg.String()
	assert.NotContains(t, out, "secret123")
	assert.Contains(t, out, "*********")
	assert.Equal(t, "secret123", cfg.LLM.APIKey)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("AGENCY_DOTENV_TEST=loaded\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("AGENCY_DOTENV_TEST") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("AGENCY_DOTENV_TEST"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}

func TestChartsPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Dir = "out"
	assert.Equal(t, filepath.Join("out", "charts"), cfg.ChartsPath())

	cfg.Output.ChartsDir = ""
	assert.Equal(t, filepath.Join("out", "charts"), cfg.ChartsPath())

	cfg.Output.ChartsDir = "/tmp/charts"
	assert.Equal(t, "/tmp/charts", cfg.ChartsPath())
}

func TestDatasetOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dataset.Delimiter = ";"
	cfg.Dataset.ReplaceSentinel = false

	opts := cfg.DatasetOptions()
	assert.Equal(t, ';', opts.Delimiter)
	assert.False(t, opts.ReplaceSentinel)
	assert.Equal(t, 99999.0, opts.Sentinel)
}
