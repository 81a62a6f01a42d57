package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/discovery-widget/internal/api/router"
	"github.com/wolfman30/discovery-widget/internal/chat"
	appconfig "github.com/wolfman30/discovery-widget/internal/config"
	"github.com/wolfman30/discovery-widget/internal/conversation"
	httpmiddleware "github.com/wolfman30/discovery-widget/internal/http/middleware"
	"github.com/wolfman30/discovery-widget/internal/llm"
	"github.com/wolfman30/discovery-widget/internal/notify"
	"github.com/wolfman30/discovery-widget/internal/observability/metrics"
	"github.com/wolfman30/discovery-widget/internal/prompt"
	"github.com/wolfman30/discovery-widget/internal/tracker"
	"github.com/wolfman30/discovery-widget/internal/webchat"
	"github.com/wolfman30/discovery-widget/pkg/logging"
)

// Deps overrides pieces of the wiring. Zero values are built from config.
type Deps struct {
	AWSConfig *aws.Config
	Redis     *redis.Client
	LLM       llm.Client
	Email     notify.EmailSender
	Registry  *prometheus.Registry
}

// App is the assembled HTTP service.
type App struct {
	Handler     http.Handler
	WebChat     *webchat.Handler
	RateLimiter *httpmiddleware.RateLimiter
	Redis       *redis.Client
}

// Close stops web-chat sessions, waits for their summaries and releases Redis.
func (a *App) Close() {
	if a.WebChat != nil {
		a.WebChat.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}

// BuildApp wires config into a ready-to-serve router.
func BuildApp(ctx context.Context, cfg *appconfig.Config, deps Deps, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	m := metrics.NewWidgetMetrics(reg)

	persona, err := prompt.Load(cfg.PersonaFile)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	client := deps.LLM
	if client == nil {
		client, err = BuildLLM(ctx, cfg, deps.AWSConfig, m, logger)
		if err != nil {
			return nil, err
		}
	}
	sender := deps.Email
	if sender == nil {
		sender, err = BuildEmailSender(cfg, deps.AWSConfig, logger)
		if err != nil {
			return nil, err
		}
	}
	redisClient := deps.Redis
	if redisClient == nil {
		redisClient = BuildRedisClient(ctx, cfg, logger, true)
	}

	chatSvc := chat.NewService(client, persona, chat.Options{
		Model:      modelFor(cfg),
		MaxHistory: cfg.MaxHistoryMessages,
	}, logger)
	trackerSvc := tracker.NewService(sender, tracker.Options{
		MinMessages: cfg.MinSummaryMessages,
		TeamEmail:   appconfig.TeamEmail,
		LeadRecap:   cfg.LeadRecapEnabled,
	}, m, logger)

	wc := webchat.NewHandler(webchat.Options{
		Store:     BuildStateStore(redisClient, cfg, logger),
		Transport: webchat.NewChatTransport(chatSvc, persona.FallbackReply, logger),
		Notifier:  webchat.NewSummaryNotifier(trackerSvc, logger),
		Policy: conversation.Policy{
			MaxMessages: cfg.MaxMessages,
			MinMessages: cfg.MinSummaryMessages,
			IdleTimeout: cfg.IdleTimeout,
			StateTTL:    cfg.StateTTL,
		},
		Greeting:      persona.Greeting,
		FallbackReply: persona.FallbackReply,
		Metrics:       m,
		Logger:        logger,
		SessionIdle:   cfg.SessionIdle,
	})

	var limiter *httpmiddleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	routerCfg := &router.Config{
		Logger:             logger,
		ChatHandler:        chat.NewHandler(chatSvc, m, logger),
		TrackerHandler:     tracker.NewHandler(trackerSvc, logger),
		WebChat:            wc,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
	}
	if redisClient != nil {
		routerCfg.HealthCheck = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	return &App{
		Handler:     router.New(routerCfg),
		WebChat:     wc,
		RateLimiter: limiter,
		Redis:       redisClient,
	}, nil
}

func modelFor(cfg *appconfig.Config) string {
	switch cfg.LLMProvider {
	case llm.ProviderGemini:
		return cfg.GeminiModel
	case llm.ProviderBedrock:
		return cfg.BedrockModelID
	default:
		return cfg.OpenAIModel
	}
}
