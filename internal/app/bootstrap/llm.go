package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"

	appconfig "github.com/wolfman30/discovery-widget/internal/config"
	"github.com/wolfman30/discovery-widget/internal/llm"
	"github.com/wolfman30/discovery-widget/pkg/logging"
)

// BuildLLM wires the configured completion provider and its optional fallback.
// awsCfg is only needed for the bedrock provider.
func BuildLLM(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, observer llm.Observer, logger *logging.Logger) (llm.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	client, err := llm.Build(ctx, llm.Options{
		Provider:         cfg.LLMProvider,
		FallbackProvider: cfg.LLMFallbackProvider,
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		OpenAIModel:      cfg.OpenAIModel,
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		HTTPClient:       &http.Client{Timeout: cfg.LLMTimeout},
		GeminiAPIKey:     cfg.GeminiAPIKey,
		GeminiModel:      cfg.GeminiModel,
		BedrockModelID:   cfg.BedrockModelID,
		AWSConfig:        awsCfg,
		Observer:         observer,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: build llm: %w", err)
	}
	logger.Info("llm provider configured", "provider", cfg.LLMProvider, "fallback", cfg.LLMFallbackProvider)
	return client, nil
}
