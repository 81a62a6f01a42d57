package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/discovery-widget/internal/chat"
	httpmiddleware "github.com/wolfman30/discovery-widget/internal/http/middleware"
	"github.com/wolfman30/discovery-widget/internal/tracker"
	"github.com/wolfman30/discovery-widget/internal/webchat"
	"github.com/wolfman30/discovery-widget/pkg/logging"
)

const serviceName = "discovery-widget"

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	ChatHandler        *chat.Handler
	TrackerHandler     *tracker.Handler
	WebChat            *webchat.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	RateLimiter        *httpmiddleware.RateLimiter

	// HealthCheck, when set, is probed by GET /health (e.g. a Redis ping).
	HealthCheck func(ctx context.Context) error
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthHandler(cfg.HealthCheck))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Compress(5))
		if cfg.RateLimiter != nil {
			api.Use(cfg.RateLimiter.Middleware)
		}
		if cfg.ChatHandler != nil {
			api.Post("/chat", cfg.ChatHandler.Chat)
		}
		if cfg.TrackerHandler != nil {
			api.Post("/conversation-complete", cfg.TrackerHandler.Complete)
		}
	})

	if cfg.WebChat != nil {
		r.Route("/chat", func(c chi.Router) {
			if cfg.RateLimiter != nil {
				c.Use(cfg.RateLimiter.Middleware)
			}
			c.Get("/ws", cfg.WebChat.HandleWebSocket)
			c.Post("/message", cfg.WebChat.HandleMessage)
			c.Post("/reset", cfg.WebChat.HandleReset)
			c.Get("/history", cfg.WebChat.HandleHistory)
		})
	}

	return r
}

func healthHandler(check func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]string{"status": "healthy", "service": serviceName}
		status := http.StatusOK
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				resp["status"] = "degraded"
				resp["error"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
