package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/wolfman30/discovery-widget/pkg/logging"
)

const (
	ProviderOpenAI  = "openai"
	ProviderBedrock = "bedrock"
	ProviderGemini  = "gemini"
)

// ErrUnknownProvider is returned for provider names Build does not recognize.
var ErrUnknownProvider = errors.New("llm: unknown provider")

// Options selects and configures providers.
type Options struct {
	Provider         string
	FallbackProvider string

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	HTTPClient    *http.Client

	GeminiAPIKey string
	GeminiModel  string

	BedrockModelID string
	AWSConfig      *aws.Config

	Observer Observer
}

// Build returns the configured primary client, wrapped with a fallback
// provider when one is set.
func Build(ctx context.Context, opts Options, logger *logging.Logger) (Client, error) {
	if logger == nil {
		logger = logging.Default()
	}
	primary, err := buildProvider(ctx, opts.Provider, opts)
	if err != nil {
		return nil, err
	}
	primary = Instrument(primary, opts.Provider, opts.Observer)

	fallbackName := strings.ToLower(strings.TrimSpace(opts.FallbackProvider))
	if fallbackName == "" || fallbackName == strings.ToLower(opts.Provider) {
		return primary, nil
	}
	fallback, err := buildProvider(ctx, fallbackName, opts)
	if err != nil {
		logger.Warn("llm: fallback provider unavailable", "provider", fallbackName, "error", err)
		return primary, nil
	}
	logger.Info("llm: fallback provider configured", "primary", opts.Provider, "fallback", fallbackName)
	return NewFallbackClient(primary, Instrument(fallback, fallbackName, opts.Observer), logger), nil
}

func buildProvider(ctx context.Context, name string, opts Options) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProviderOpenAI, "":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:     opts.OpenAIAPIKey,
			Model:      opts.OpenAIModel,
			BaseURL:    opts.OpenAIBaseURL,
			HTTPClient: opts.HTTPClient,
		})
	case ProviderGemini:
		return NewGeminiClient(ctx, opts.GeminiAPIKey, opts.GeminiModel)
	case ProviderBedrock:
		if opts.AWSConfig == nil {
			return nil, errors.New("llm: bedrock requires aws config")
		}
		if strings.TrimSpace(opts.BedrockModelID) == "" {
			return nil, errors.New("llm: bedrock model id is required")
		}
		return NewBedrockClient(bedrockruntime.NewFromConfig(*opts.AWSConfig), opts.BedrockModelID), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}
