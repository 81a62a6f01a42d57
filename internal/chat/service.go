// Package chat implements the completion endpoint: it turns the widget's
// transcript into an LLM request and returns the sanitized reply plus any
// lead fields it could extract.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/discovery-widget/internal/leads"
	"github.com/wolfman30/discovery-widget/internal/llm"
	"github.com/wolfman30/discovery-widget/internal/prompt"
	"github.com/wolfman30/discovery-widget/internal/protocol"
	"github.com/wolfman30/discovery-widget/pkg/logging"
)

var (
	ErrEmptyMessage  = errors.New("chat: message is required")
	ErrCompletion    = errors.New("chat: completion failed")
	ErrEmptyResponse = errors.New("chat: completion returned no text")
)

// Options tunes the completion request.
type Options struct {
	Model       string
	MaxHistory  int
	MaxTokens   int32
	Temperature float32
}

func (o Options) withDefaults() Options {
	if o.MaxHistory <= 0 {
		o.MaxHistory = 20
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 300
	}
	if o.Temperature == 0 {
		o.Temperature = 0.7
	}
	return o
}

// Service answers chat turns.
type Service struct {
	llm     llm.Client
	persona *prompt.Persona
	opts    Options
	logger  *logging.Logger
	tracer  trace.Tracer
}

func NewService(client llm.Client, persona *prompt.Persona, opts Options, logger *logging.Logger) *Service {
	if client == nil {
		panic("chat: llm client cannot be nil")
	}
	if persona == nil {
		persona = prompt.Default()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		llm:     client,
		persona: persona,
		opts:    opts.withDefaults(),
		logger:  logger,
		tracer:  otel.Tracer("discovery.internal.chat"),
	}
}

// Persona returns the persona the service prompts with.
func (s *Service) Persona() *prompt.Persona {
	return s.persona
}

// Reply produces the assistant's next message for req.
func (s *Service) Reply(ctx context.Context, req protocol.ChatRequest) (protocol.ChatResponse, error) {
	ctx, span := s.tracer.Start(ctx, "chat.reply")
	defer span.End()

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return protocol.ChatResponse{}, ErrEmptyMessage
	}

	history := s.history(req.Messages, message)
	span.SetAttributes(
		attribute.String("conversation.id", req.ConversationID),
		attribute.Int("chat.history_len", len(history)),
	)

	resp, err := s.llm.Complete(ctx, llm.Request{
		Model:       s.opts.Model,
		System:      s.persona.System(req.LeadInfo),
		Messages:    append(history, llm.Message{Role: llm.RoleUser, Content: message}),
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		span.RecordError(err)
		return protocol.ChatResponse{}, fmt.Errorf("%w: %w", ErrCompletion, err)
	}

	text, side := splitLeadInfo(resp.Text)
	text = strings.TrimSpace(stripEmoji(text))
	if text == "" {
		return protocol.ChatResponse{}, ErrEmptyResponse
	}

	extracted := leads.Extract(message)
	extracted.Merge(side)

	out := protocol.ChatResponse{Response: text}
	if !extracted.IsEmpty() {
		out.ExtractedInfo = &extracted
		s.logger.Debug("chat: lead fields extracted", "conversation_id", req.ConversationID, "fields", extracted.Fields())
	}
	return out, nil
}

// history keeps the last MaxHistory user/assistant messages, minus a trailing
// user message that repeats the current one.
func (s *Service) history(msgs []protocol.Message, current string) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch m.Role {
		case llm.RoleUser, llm.RoleAssistant:
			out = append(out, llm.Message{Role: m.Role, Content: content})
		}
	}
	if n := len(out); n > 0 && out[n-1].Role == llm.RoleUser && out[n-1].Content == current {
		out = out[:n-1]
	}
	if len(out) > s.opts.MaxHistory {
		out = out[len(out)-s.opts.MaxHistory:]
	}
	return out
}
