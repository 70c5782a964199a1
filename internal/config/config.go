package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"agency-insights/internal/dataset"
)

// AppConfig contains all configuration for the analysis toolkit
type AppConfig struct {
	Dataset DatasetConfig `json:"dataset" mapstructure:"dataset" validate:"required"`
	Output  OutputConfig  `json:"output" mapstructure:"output" validate:"required"`
	LLM     LLMConfig     `json:"llm" mapstructure:"llm" validate:"required"`
	Agents  AgentsConfig  `json:"agents" mapstructure:"agents" validate:"required"`
	Server  ServerConfig  `json:"server" mapstructure:"server" validate:"required"`
	Storage StorageConfig `json:"storage" mapstructure:"storage"`

	// Logging
	LogLevel string `json:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	LogFile  string `json:"log_file" mapstructure:"log_file"`

	// Processing options
	MaxConcurrency int `json:"max_concurrency" mapstructure:"max_concurrency" validate:"min=1,max=64"`
}

// DatasetConfig describes the input CSV
type DatasetConfig struct {
	Path            string  `json:"path" mapstructure:"path" validate:"required"`
	Sentinel        float64 `json:"sentinel" mapstructure:"sentinel"`
	ReplaceSentinel bool    `json:"replace_sentinel" mapstructure:"replace_sentinel"`
	Delimiter       string  `json:"delimiter" mapstructure:"delimiter" validate:"omitempty,len=1"`
}

// OutputConfig describes where reports, charts and exports are written
type OutputConfig struct {
	Dir       string `json:"dir" mapstructure:"dir" validate:"required"`
	ChartsDir string `json:"charts_dir" mapstructure:"charts_dir"`
}

// LLMConfig configuration for the language model collaborator
type LLMConfig struct {
	Provider          string   `json:"provider" mapstructure:"provider" validate:"required,oneof=claude-cli openai ollama"`
	Model             string   `json:"model" mapstructure:"model"`
	BaseURL           string   `json:"base_url,omitempty" mapstructure:"base_url" validate:"omitempty,url"`
	APIKey            string   `json:"api_key,omitempty" mapstructure:"api_key"`
	CLIPath           string   `json:"cli_path" mapstructure:"cli_path"`
	CLIArgs           []string `json:"cli_args" mapstructure:"cli_args"`
	PathPrefix        string   `json:"path_prefix,omitempty" mapstructure:"path_prefix"`
	TimeoutSeconds    float64  `json:"timeout_seconds" mapstructure:"timeout_seconds" validate:"min=1,max=7200"`
	RequestsPerSecond float64  `json:"requests_per_second" mapstructure:"requests_per_second" validate:"min=0"`
}

// AgentsConfig configuration for the agent pipelines
type AgentsConfig struct {
	CommDir  string `json:"comm_dir" mapstructure:"comm_dir" validate:"required"`
	MaxTurns int    `json:"max_turns" mapstructure:"max_turns" validate:"min=1,max=50"`
}

// ServerConfig configuration for the HTTP server
type ServerConfig struct {
	Address             string   `json:"address" mapstructure:"address" validate:"required"`
	UploadDir           string   `json:"upload_dir" mapstructure:"upload_dir"`
	ReadTimeoutSeconds  int      `json:"read_timeout_seconds" mapstructure:"read_timeout_seconds" validate:"min=1"`
	WriteTimeoutSeconds int      `json:"write_timeout_seconds" mapstructure:"write_timeout_seconds" validate:"min=1"`
	RateLimit           int      `json:"rate_limit" mapstructure:"rate_limit" validate:"min=0"`
	WatchFiles          []string `json:"watch_files" mapstructure:"watch_files"`
	MaxUploadMB         int      `json:"max_upload_mb" mapstructure:"max_upload_mb" validate:"min=1,max=4096"`
}

// StorageConfig configuration for the SQLite export
type StorageConfig struct {
	SQLitePath string `json:"sqlite_path" mapstructure:"sqlite_path"`
	Table      string `json:"table" mapstructure:"table"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Dataset: DatasetConfig{
			Path:            "finalapi.csv",
			Sentinel:        99999,
			ReplaceSentinel: true,
			Delimiter:       ",",
		},
		Output: OutputConfig{
			Dir:       "agent_comm",
			ChartsDir: "charts",
		},
		LLM: LLMConfig{
			Provider:          "claude-cli",
			Model:             "gpt-4o-mini",
			CLIPath:           "claude",
			CLIArgs:           []string{"--dangerously-skip-permissions"},
			TimeoutSeconds:    1800,
			RequestsPerSecond: 0,
		},
		Agents: AgentsConfig{
			CommDir:  "agent_comm",
			MaxTurns: 10,
		},
		Server: ServerConfig{
			Address:             ":8000",
			UploadDir:           ".",
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 60,
			RateLimit:           20,
			WatchFiles:          []string{"research.md", "analysis.log", "error.log"},
			MaxUploadMB:         512,
		},
		Storage: StorageConfig{
			SQLitePath: "agency.sqlite",
			Table:      "agency_records",
		},
		LogLevel:       "INFO",
		LogFile:        "",
		MaxConcurrency: 4,
	}
}

// LoadConfigFromFile loads configuration from a JSON or YAML file
func LoadConfigFromFile(path string) (*AppConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from .env files into the process environment.
// A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// ApplyEnv fills secrets from the environment when the file leaves them empty
func (c *AppConfig) ApplyEnv(getenv func(string) string) {
	if c.LLM.APIKey != "" {
		return
	}
	switch c.LLM.Provider {
	case "claude-cli":
		c.LLM.APIKey = getenv("ANTHROPIC_API_KEY")
	case "openai":
		c.LLM.APIKey = getenv("OPENAI_API_KEY")
	}
}

// Validate validates the configuration
func (c *AppConfig) Validate() error {
	validate := validator.New()

	if c.Output.Dir != "" {
		c.Output.Dir = filepath.Clean(c.Output.Dir)
	}
	if c.Agents.CommDir != "" {
		c.Agents.CommDir = filepath.Clean(c.Agents.CommDir)
	}

	if c.LLM.Provider == "claude-cli" && c.LLM.CLIPath == "" {
		return fmt.Errorf("llm.cli_path is required for the claude-cli provider")
	}
	if (c.LLM.Provider == "openai" || c.LLM.Provider == "ollama") && c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required for the %s provider", c.LLM.Provider)
	}
	if c.LLM.Provider == "ollama" && c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required for the ollama provider")
	}

	return validate.Struct(c)
}

// ChartsPath returns the directory charts are written to
func (c *AppConfig) ChartsPath() string {
	if c.Output.ChartsDir == "" {
		return filepath.Join(c.Output.Dir, "charts")
	}
	if filepath.IsAbs(c.Output.ChartsDir) {
		return c.Output.ChartsDir
	}
	return filepath.Join(c.Output.Dir, c.Output.ChartsDir)
}

// DatasetOptions returns the CSV loading options for the configured dataset
func (c *AppConfig) DatasetOptions() dataset.Options {
	opts := dataset.DefaultOptions()
	opts.Sentinel = c.Dataset.Sentinel
	opts.ReplaceSentinel = c.Dataset.ReplaceSentinel
	if c.Dataset.Delimiter != "" {
		opts.Delimiter = []rune(c.Dataset.Delimiter)[0]
	}
	return opts
}

// SaveToFile saves the configuration to a file
func (c *AppConfig) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Sanitized returns a copy with secrets masked
func (c *AppConfig) Sanitized() AppConfig {
	configCopy := *c
	if configCopy.LLM.APIKey != "" {
		configCopy.LLM.APIKey = strings.Repeat("*", len(configCopy.LLM.APIKey))
	}
	return configCopy
}

// String returns a string representation of the config (with sensitive data masked)
func (c *AppConfig) String() string {
	data, _ := json.MarshalIndent(c.Sanitized(), "", "  ")
	return string(data)
}
