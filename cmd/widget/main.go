// Command widget is a terminal rendition of the discovery chat widget. It
// keeps the conversation in a local JSON file and talks to the chat and
// conversation-complete endpoints over HTTP.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	appconfig "github.com/wolfman30/discovery-widget/internal/config"
	"github.com/wolfman30/discovery-widget/internal/conversation"
	"github.com/wolfman30/discovery-widget/internal/prompt"
	"github.com/wolfman30/discovery-widget/internal/widget"
	"github.com/wolfman30/discovery-widget/pkg/logging"
)

const help = `Commands: /reset starts over, /close hides the chat, /open shows it, /quit exits.`

func main() {
	_ = godotenv.Load()
	cfg := appconfig.LoadWidget()

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "widget: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdin, os.Stdout, logger); err != nil {
		fmt.Fprintf(os.Stderr, "widget: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(cfg *appconfig.WidgetConfig) (*logging.Logger, func(), error) {
	opts := logging.Options{Level: cfg.LogLevel, Format: "console"}
	closer := func() {}
	if cfg.LogFile != "" {
		h, c, err := logging.NewFileHandler(cfg.LogFile, "debug")
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		opts.Extra = []slog.Handler{h}
		closer = func() { _ = c.Close() }
	}
	return logging.NewWithOptions(opts), closer, nil
}

// newManager wires the conversation manager to the file store and HTTP clients.
func newManager(cfg *appconfig.WidgetConfig, persona *prompt.Persona, out io.Writer, logger *logging.Logger) (*conversation.Manager, error) {
	dir := filepath.Dir(cfg.StateFile)
	key := strings.TrimSuffix(filepath.Base(cfg.StateFile), ".json")
	store, err := conversation.NewFileStore(dir)
	if err != nil {
		return nil, err
	}

	mcfg := conversation.ManagerConfig{
		Store:         store,
		Key:           key,
		Logger:        logger,
		Greeting:      persona.Greeting,
		FallbackReply: persona.FallbackReply,
		Policy: conversation.Policy{
			MaxMessages: cfg.MaxMessages,
			MinMessages: cfg.MinMessages,
			IdleTimeout: cfg.IdleTimeout,
			StateTTL:    cfg.StateTTL,
		},
		OnFinalize: func(s conversation.Summary, err error) {
			if err != nil {
				logger.Warn("summary delivery failed", "conversation_id", s.ConversationID, "error", err)
				return
			}
			if s.Reason == conversation.ReasonIdle {
				fmt.Fprintln(out, "\n(conversation closed after inactivity; thanks for chatting)")
			}
		},
	}
	// Nil clients must stay nil interfaces.
	if t := widget.NewTransportClient(widget.TransportConfig{
		Endpoint:      cfg.APIEndpoint,
		Timeout:       cfg.RequestTimeout,
		FallbackReply: persona.FallbackReply,
	}, logger); t != nil {
		mcfg.Transport = t
	}
	if n := widget.NewTrackerClient(widget.TrackerConfig{
		Endpoint: cfg.TrackerEndpoint,
		PageURL:  cfg.PageURL,
		Timeout:  cfg.RequestTimeout,
	}, logger); n != nil {
		mcfg.Notifier = n
	}
	return conversation.NewManager(mcfg), nil
}

func run(ctx context.Context, cfg *appconfig.WidgetConfig, in io.Reader, out io.Writer, logger *logging.Logger) error {
	persona, err := prompt.Load(cfg.PersonaFile)
	if err != nil {
		return err
	}
	m, err := newManager(cfg, persona, out, logger)
	if err != nil {
		return err
	}
	defer func() {
		m.Close()
		m.Wait()
	}()
	if err := m.Start(ctx); err != nil {
		return err
	}

	fmt.Fprintln(out, help)
	printTranscript(out, m.Snapshot().Messages)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		fmt.Fprint(out, "> ")
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case line, ok = <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
		}

		switch strings.TrimSpace(line) {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			m.Reset(ctx)
			printTranscript(out, m.Snapshot().Messages)
			continue
		case "/close":
			m.SetOpen(false)
			fmt.Fprintln(out, "(chat hidden)")
			continue
		case "/open":
			pending := m.PendingNotification()
			m.SetOpen(true)
			if pending {
				fmt.Fprintln(out, "(you have a new reply)")
			}
			printTranscript(out, m.Snapshot().Messages)
			continue
		}

		outcome, err := m.HandleTurn(ctx, line)
		if err != nil {
			logger.Debug("turn rejected", "error", err)
			continue
		}
		if m.PendingNotification() {
			fmt.Fprintln(out, "(new reply waiting; /open to read)")
		} else {
			fmt.Fprintf(out, "AI: %s\n", outcome.Reply)
		}
		if outcome.Finalized {
			fmt.Fprintln(out, "(conversation sent to the team; /reset to start a new one)")
		}
	}
}

func printTranscript(out io.Writer, msgs []conversation.Message) {
	for _, msg := range msgs {
		who := "AI"
		if msg.Role == conversation.RoleUser {
			who = "You"
		}
		fmt.Fprintf(out, "%s: %s\n", who, msg.Content)
	}
}
