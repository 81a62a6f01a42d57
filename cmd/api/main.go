package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/discovery-widget/cmd/mainconfig"
	"github.com/wolfman30/discovery-widget/internal/app/bootstrap"
	appconfig "github.com/wolfman30/discovery-widget/internal/config"
	"github.com/wolfman30/discovery-widget/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "api: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	logger.Info("starting discovery-widget API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"llm_provider", cfg.LLMProvider,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		closeLog()
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// newLogger builds the primary logger and, when LOG_FILE is set, fans records
// out to an append-only JSON file as well.
func newLogger(cfg *appconfig.Config) (*logging.Logger, func(), error) {
	opts := logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat}
	if cfg.LogFile == "" {
		return logging.NewWithOptions(opts), func() {}, nil
	}
	h, c, err := logging.NewFileHandler(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	opts.Extra = append(opts.Extra, h)
	return logging.NewWithOptions(opts), func() { _ = c.Close() }, nil
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := newServer(cfg, app.Handler)
	done := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if app.RateLimiter != nil {
		g.Go(func() error {
			app.RateLimiter.Run(done, 5*time.Minute)
			return nil
		})
	}
	if app.WebChat != nil {
		g.Go(func() error {
			app.WebChat.Run(done, time.Minute)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		close(done)
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*bootstrap.App, error) {
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Warn("AWS config unavailable; bedrock and SES disabled", "error", err)
		return bootstrap.BuildApp(ctx, cfg, bootstrap.Deps{}, logger)
	}
	return bootstrap.BuildApp(ctx, cfg, bootstrap.Deps{AWSConfig: &awsCfg}, logger)
}

func newServer(cfg *appconfig.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LLMTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
