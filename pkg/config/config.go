// Package config loads bunko settings from YAML files and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bunko/bunko/pkg/kafka"
)

// Config holds the complete bunko configuration
type Config struct {
	Archive   ArchiveConfig   `yaml:"archive"`
	Search    SearchConfig    `yaml:"search"`
	Inference InferenceConfig `yaml:"inference"`
	Cache     CacheConfig     `yaml:"cache"`
	Events    EventsConfig    `yaml:"events"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
	CLI       CLIConfig       `yaml:"cli"`
}

// ArchiveConfig points at the archive search service
type ArchiveConfig struct {
	BaseURL          string        `yaml:"base_url"`
	Timeout          time.Duration `yaml:"timeout"`
	RetryAttempts    int           `yaml:"retry_attempts"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	FailureThreshold int           `yaml:"failure_threshold"` // consecutive failures before the breaker opens
	OpenTimeout      time.Duration `yaml:"open_timeout"`
}

// SearchConfig holds per-question search parameters
type SearchConfig struct {
	KInternal  int  `yaml:"k_internal"`
	KWeb       int  `yaml:"k_web"`
	IncludeWeb bool `yaml:"include_web"`
	TimeoutMS  int  `yaml:"timeout_ms"` // 0 leaves the service default
}

// InferenceConfig holds chat model configuration
type InferenceConfig struct {
	Provider      string  `yaml:"provider"` // ollama, openai, gemini
	Model         string  `yaml:"model"`
	Temperature   float64 `yaml:"temperature"`
	MaxHistory    int     `yaml:"max_history"`
	OllamaHost    string  `yaml:"ollama_host"`
	OpenAIAPIKey  string  `yaml:"openai_api_key,omitempty"`
	OpenAIBaseURL string  `yaml:"openai_base_url,omitempty"`
	GeminiAPIKey  string  `yaml:"gemini_api_key,omitempty"`
	SystemPrompt  string  `yaml:"system_template,omitempty"` // overrides the built-in template
}

// CacheConfig holds the Redis search cache settings
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// EventsConfig configures the external event sink
type EventsConfig struct {
	Kafka kafka.Config `yaml:"kafka"`
}

// MetricsConfig holds metrics exposition settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	File   string `yaml:"file"`   // empty logs to stderr
}

// CLIConfig holds CLI-specific configuration
type CLIConfig struct {
	Theme           string `yaml:"theme"` // dark, light, auto
	StreamResponse  bool   `yaml:"stream_response"`
	MaxExcerptRunes int    `yaml:"max_excerpt_runes"`
	ShowSources     bool   `yaml:"show_sources"`
}

// Default returns the default configuration
func Default() Config {
	return Config{
		Archive: ArchiveConfig{
			BaseURL:          "http://localhost:8000",
			Timeout:          30 * time.Second,
			RetryAttempts:    3,
			RetryDelay:       200 * time.Millisecond,
			FailureThreshold: 5,
			OpenTimeout:      30 * time.Second,
		},
		Search: SearchConfig{
			KInternal:  5,
			KWeb:       3,
			IncludeWeb: true,
		},
		Inference: InferenceConfig{
			Provider:    "ollama",
			Model:       "qwen2.5:7b",
			Temperature: 0.3,
			MaxHistory:  20,
			OllamaHost:  "http://localhost:11434",
		},
		Cache: CacheConfig{
			Addr:   "localhost:6379",
			Prefix: "bunko:",
			TTL:    7 * 24 * time.Hour,
		},
		Events: EventsConfig{
			Kafka: kafka.Config{
				Topic:    kafka.DefaultTopic,
				Consumer: kafka.ConsumerConfig{GroupID: "bunko-tail", AutoOffsetReset: "latest"},
			},
		},
		Metrics: MetricsConfig{
			Addr: ":9464",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			File:   defaultLogFile(),
		},
		CLI: CLIConfig{
			Theme:           "auto",
			StreamResponse:  true,
			MaxExcerptRunes: 2000,
			ShowSources:     true,
		},
	}
}

// ConfigPaths returns the global and project config directories
func ConfigPaths() (globalDir, projectDir string) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	globalDir = filepath.Join(home, ".bunko")
	projectDir = ".bunko"
	return
}

// GlobalConfigPath returns the path to the global config file
func GlobalConfigPath() string {
	globalDir, _ := ConfigPaths()
	return filepath.Join(globalDir, "config.yaml")
}

// ProjectConfigPath returns the path to the project config file
func ProjectConfigPath() string {
	_, projectDir := ConfigPaths()
	return filepath.Join(projectDir, "config.yaml")
}

func defaultLogFile() string {
	globalDir, _ := ConfigPaths()
	return filepath.Join(globalDir, "bunko.log")
}

// Load reads the global config, then the project config, then environment
// overrides.
func Load() (*Config, error) {
	return LoadFrom(GlobalConfigPath(), ProjectConfigPath())
}

// LoadFrom loads and merges the given files in order. Missing files are
// skipped.
func LoadFrom(paths ...string) (*Config, error) {
	cfg := Default()

	for _, path := range paths {
		if err := loadYAML(path, &cfg); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// LoadFile loads one file over the defaults without environment overrides.
// Used when editing a file in place.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := loadYAML(path, &cfg); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return &cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies BUNKO_* environment variables
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BUNKO_ARCHIVE_URL"); v != "" {
		cfg.Archive.BaseURL = v
	}
	if v := os.Getenv("BUNKO_INFERENCE_PROVIDER"); v != "" {
		cfg.Inference.Provider = v
	}
	if v := os.Getenv("BUNKO_INFERENCE_MODEL"); v != "" {
		cfg.Inference.Model = v
	}
	if v := os.Getenv("BUNKO_OLLAMA_HOST"); v != "" {
		cfg.Inference.OllamaHost = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Inference.OpenAIAPIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Inference.GeminiAPIKey = v
	}
	if v := os.Getenv("BUNKO_REDIS_ADDR"); v != "" {
		cfg.Cache.Addr = v
		cfg.Cache.Enabled = true
	}
	if v := os.Getenv("BUNKO_KAFKA_BROKERS"); v != "" {
		cfg.Events.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("BUNKO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	cfg.Search.IncludeWeb = GetEnvBool("BUNKO_INCLUDE_WEB", cfg.Search.IncludeWeb)
	cfg.Metrics.Enabled = GetEnvBool("BUNKO_METRICS", cfg.Metrics.Enabled)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Save writes cfg to path, creating the directory
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Set assigns a value by its dotted key, e.g. "inference.model"
func (c *Config) Set(key, value string) error {
	switch key {
	case "archive.base_url":
		c.Archive.BaseURL = value
	case "search.k_internal":
		return setInt(&c.Search.KInternal, key, value)
	case "search.k_web":
		return setInt(&c.Search.KWeb, key, value)
	case "search.include_web":
		c.Search.IncludeWeb = parseBool(value)
	case "inference.provider":
		switch value {
		case "ollama", "openai", "gemini":
			c.Inference.Provider = value
		default:
			return fmt.Errorf("unknown provider: %s", value)
		}
	case "inference.model":
		c.Inference.Model = value
	case "inference.ollama_host":
		c.Inference.OllamaHost = value
	case "inference.temperature":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		c.Inference.Temperature = f
	case "cache.enabled":
		c.Cache.Enabled = parseBool(value)
	case "cache.addr":
		c.Cache.Addr = value
	case "events.kafka.brokers":
		c.Events.Kafka.Brokers = splitList(value)
	case "metrics.enabled":
		c.Metrics.Enabled = parseBool(value)
	case "logging.level":
		c.Logging.Level = value
	case "cli.theme":
		c.CLI.Theme = value
	case "cli.stream_response":
		c.CLI.StreamResponse = parseBool(value)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dst = n
	return nil
}

func parseBool(v string) bool {
	return v == "true" || v == "1" || v == "yes"
}

// GetEnv retrieves environment variable with a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvBool retrieves environment variable as bool with a default value
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return parseBool(value)
	}
	return defaultValue
}
