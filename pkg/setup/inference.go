// Package setup builds the runtime stack from configuration.
package setup

import (
	"context"
	"fmt"

	"github.com/bunko/bunko/pkg/config"
	"github.com/bunko/bunko/pkg/inference"
	"github.com/bunko/bunko/pkg/inference/gemini"
	"github.com/bunko/bunko/pkg/inference/ollama"
	"github.com/bunko/bunko/pkg/inference/openai"
	"github.com/bunko/bunko/pkg/logging"
)

// InitializeInference registers every provider the configuration allows and
// selects the configured one as default. The configured model only applies to
// that provider; the others keep their own defaults.
func InitializeInference(ctx context.Context, cfg config.InferenceConfig, logger logging.Logger) (*inference.Registry, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	registry := inference.NewRegistry()

	modelFor := func(name string) string {
		if cfg.Provider == name {
			return cfg.Model
		}
		return ""
	}

	// Ollama is always registered for local inference
	registry.Register(ollama.NewClient(ollama.ClientConfig{
		BaseURL: cfg.OllamaHost,
		Model:   modelFor("ollama"),
	}))

	if cfg.OpenAIAPIKey != "" || cfg.OpenAIBaseURL != "" {
		registry.Register(openai.NewClient(openai.ClientConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   modelFor("openai"),
		}))
	}

	if cfg.GeminiAPIKey != "" {
		client, err := gemini.NewClient(ctx, gemini.ClientConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  modelFor("gemini"),
		})
		if err != nil {
			logger.Warn("gemini provider unavailable", logging.Err(err))
		} else {
			registry.Register(client)
		}
	}

	if err := registry.SetDefault(cfg.Provider); err != nil {
		logger.Warn("configured provider not registered, falling back to ollama",
			logging.String("provider", cfg.Provider),
			logging.Err(err),
		)
		if err := registry.SetDefault("ollama"); err != nil {
			return nil, fmt.Errorf("failed to set default provider: %w", err)
		}
	}

	return registry, nil
}

// QuickCheck performs a quick health check on the default provider
func QuickCheck(ctx context.Context, registry *inference.Registry) error {
	provider, err := registry.Default()
	if err != nil {
		return err
	}
	if !provider.IsAvailable(ctx) {
		return fmt.Errorf("%w: %s", inference.ErrProviderNotAvailable, provider.Name())
	}
	return nil
}
