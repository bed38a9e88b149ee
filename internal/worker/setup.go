package worker

import (
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"

	"github.com/ahrav/go-appraise/internal/appraisal"
	"github.com/ahrav/go-appraise/internal/llm"
	"github.com/ahrav/go-appraise/internal/llm/configuration"
	"github.com/ahrav/go-appraise/internal/prompts"
)

// InitializeLLMClient creates the generation client for activities.
func InitializeLLMClient(cfg *configuration.Config, logger *slog.Logger) (llm.Client, error) {
	if cfg == nil {
		cfg = configuration.DefaultConfig()
	}

	c, err := llm.NewClient(cfg, llm.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	return c, nil
}

// InitializeStages loads the prompt pack named by cfg and binds it to a new
// generation client.
func InitializeStages(cfg *configuration.Config, logger *slog.Logger) (*appraisal.Stages, error) {
	if cfg == nil {
		cfg = configuration.DefaultConfig()
	}
	pack, err := prompts.Load(cfg.PromptPack)
	if err != nil {
		return nil, err
	}
	c, err := InitializeLLMClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	return appraisal.NewStages(c, pack, cfg, logger)
}

// Dial connects to the Temporal frontend named in cfg.
func Dial(cfg configuration.TemporalConfig, logger *slog.Logger) (client.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    log.NewStructuredLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to temporal at %s: %w", cfg.HostPort, err)
	}
	return c, nil
}
