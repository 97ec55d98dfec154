package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Storage     StorageConfig    `toml:"storage"`
	Queue       QueueConfig      `toml:"queue"`
	Logging     LoggingConfig    `toml:"logging"`
	Gemini      GeminiConfig     `toml:"gemini"`
	Claude      ClaudeConfig     `toml:"claude"`
	LLM         LLMConfig        `toml:"llm"`
	Generation  GenerationConfig `toml:"generation"`
	Render      RenderConfig     `toml:"render"`
	Sweeper     SweeperConfig    `toml:"sweeper"`
}

type StorageConfig struct {
	Badger BadgerConfig     `toml:"badger"`
	Files  FilesStoreConfig `toml:"files"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// FilesStoreConfig configures the filesystem sink for rendered artifacts
type FilesStoreConfig struct {
	Root string `toml:"root"` // Root directory for saved files
}

type QueueConfig struct {
	PollInterval      string `toml:"poll_interval"`      // e.g., "1s" - how often workers poll for tasks
	Concurrency       int    `toml:"concurrency"`        // Number of concurrent workers
	VisibilityTimeout string `toml:"visibility_timeout"` // e.g., "30m" - task visibility timeout for redelivery
	MaxReceive        int    `toml:"max_receive"`        // Max times a task can be received before dead-letter
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Google Gemini API key
	Model       string  `toml:"model"`       // Model for research/outline/statistics calls
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string
	RateLimit   string  `toml:"rate_limit"`  // Minimum interval between requests (default: "4s" for 15 RPM)
	Temperature float32 `toml:"temperature"` // Completion temperature
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key (ANTHROPIC_API_KEY overrides)
	Model       string  `toml:"model"`       // Model for writing calls
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string
	RateLimit   string  `toml:"rate_limit"`  // Minimum interval between requests
	Temperature float32 `toml:"temperature"` // Completion temperature
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "gemini" or "claude" (default: "gemini")
	WritingProvider LLMProvider `toml:"writing_provider"` // Provider for the writing stage (default: "claude")
}

// GenerationConfig contains pipeline behavior configuration
type GenerationConfig struct {
	ResearchDepth string `toml:"research_depth"` // Default research depth: shallow, standard, deep
	MaxRetries    int    `toml:"max_retries"`    // Maximum job retries (default: 3)
	StageTimeout  string `toml:"stage_timeout"`  // Wall-clock limit before the sweeper fails a stuck job
}

// RenderConfig contains PDF rendering configuration
type RenderConfig struct {
	TemplatesDir string `toml:"templates_dir"` // Directory containing render template files (YAML)
	PDFFolder    string `toml:"pdf_folder"`    // Folder name in the file store for rendered PDFs
}

// SweeperConfig contains stuck-job sweep configuration
type SweeperConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule format
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings are exposed in scribo.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
			Files: FilesStoreConfig{
				Root: "./data/files",
			},
		},
		Queue: QueueConfig{
			PollInterval:      "1s",
			Concurrency:       2, // One slot per in-flight pipeline; generation is LLM-bound
			VisibilityTimeout: "45m",
			MaxReceive:        3,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Gemini: GeminiConfig{
			APIKey:      "",
			Model:       "gemini-3-flash-preview",
			Timeout:     "5m",
			RateLimit:   "4s",
			Temperature: 0.7,
		},
		Claude: ClaudeConfig{
			APIKey:      "",
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   8192,
			Timeout:     "5m",
			RateLimit:   "1s",
			Temperature: 0.7,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
			WritingProvider: LLMProviderClaude,
		},
		Generation: GenerationConfig{
			ResearchDepth: "standard",
			MaxRetries:    3,
			StageTimeout:  "30m",
		},
		Render: RenderConfig{
			TemplatesDir: "./render-templates",
			PDFFolder:    "documents",
		},
		Sweeper: SweeperConfig{
			Enabled:  true,
			Schedule: "0 */5 * * * *", // Every 5 minutes
		},
	}
}

// LoadFromFile loads configuration with priority: defaults -> file -> env
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SCRIBO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Storage configuration
	if badgerPath := os.Getenv("SCRIBO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if filesRoot := os.Getenv("SCRIBO_FILES_ROOT"); filesRoot != "" {
		config.Storage.Files.Root = filesRoot
	}

	// Queue configuration
	if pollInterval := os.Getenv("SCRIBO_QUEUE_POLL_INTERVAL"); pollInterval != "" {
		config.Queue.PollInterval = pollInterval
	}
	if concurrency := os.Getenv("SCRIBO_QUEUE_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Queue.Concurrency = c
		}
	}
	if visibilityTimeout := os.Getenv("SCRIBO_QUEUE_VISIBILITY_TIMEOUT"); visibilityTimeout != "" {
		config.Queue.VisibilityTimeout = visibilityTimeout
	}
	if maxReceive := os.Getenv("SCRIBO_QUEUE_MAX_RECEIVE"); maxReceive != "" {
		if mr, err := strconv.Atoi(maxReceive); err == nil {
			config.Queue.MaxReceive = mr
		}
	}

	// Logging configuration
	if level := os.Getenv("SCRIBO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	// Gemini configuration
	if apiKey := os.Getenv("SCRIBO_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("SCRIBO_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if rateLimit := os.Getenv("SCRIBO_GEMINI_RATE_LIMIT"); rateLimit != "" {
		config.Gemini.RateLimit = rateLimit
	}
	if temperature := os.Getenv("SCRIBO_GEMINI_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Gemini.Temperature = float32(t)
		}
	}

	// Claude configuration (ANTHROPIC_API_KEY is the standard env var, SCRIBO_ prefix wins)
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("SCRIBO_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if model := os.Getenv("SCRIBO_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if maxTokens := os.Getenv("SCRIBO_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = mt
		}
	}
	if rateLimit := os.Getenv("SCRIBO_CLAUDE_RATE_LIMIT"); rateLimit != "" {
		config.Claude.RateLimit = rateLimit
	}

	// LLM provider configuration
	if provider := os.Getenv("SCRIBO_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}
	if provider := os.Getenv("SCRIBO_LLM_WRITING_PROVIDER"); provider != "" {
		config.LLM.WritingProvider = LLMProvider(provider)
	}

	// Generation configuration
	if depth := os.Getenv("SCRIBO_GENERATION_RESEARCH_DEPTH"); depth != "" {
		config.Generation.ResearchDepth = depth
	}
	if maxRetries := os.Getenv("SCRIBO_GENERATION_MAX_RETRIES"); maxRetries != "" {
		if mr, err := strconv.Atoi(maxRetries); err == nil {
			config.Generation.MaxRetries = mr
		}
	}
	if stageTimeout := os.Getenv("SCRIBO_GENERATION_STAGE_TIMEOUT"); stageTimeout != "" {
		if _, err := time.ParseDuration(stageTimeout); err == nil {
			config.Generation.StageTimeout = stageTimeout
		}
	}

	// Render configuration
	if templatesDir := os.Getenv("SCRIBO_RENDER_TEMPLATES_DIR"); templatesDir != "" {
		config.Render.TemplatesDir = templatesDir
	}

	// Sweeper configuration
	if schedule := os.Getenv("SCRIBO_SWEEPER_SCHEDULE"); schedule != "" {
		config.Sweeper.Schedule = schedule
	}
}

// PollInterval parses the queue poll interval, falling back to 1s
func (q *QueueConfig) PollIntervalDuration() time.Duration {
	d, err := time.ParseDuration(q.PollInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// VisibilityTimeoutDuration parses the visibility timeout, falling back to 45m
func (q *QueueConfig) VisibilityTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(q.VisibilityTimeout)
	if err != nil || d <= 0 {
		return 45 * time.Minute
	}
	return d
}

// StageTimeoutDuration parses the stage timeout, falling back to 30m
func (g *GenerationConfig) StageTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(g.StageTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}
