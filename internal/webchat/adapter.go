package webchat

import (
	"context"

	"github.com/wolfman30/discovery-widget/internal/conversation"
	"github.com/wolfman30/discovery-widget/internal/protocol"
	"github.com/wolfman30/discovery-widget/internal/tracker"
	"github.com/wolfman30/discovery-widget/pkg/logging"
)

// Replier answers one chat turn. *chat.Service satisfies it.
type Replier interface {
	Reply(ctx context.Context, req protocol.ChatRequest) (protocol.ChatResponse, error)
}

// Processor handles a finished transcript. *tracker.Service satisfies it.
type Processor interface {
	Process(ctx context.Context, req protocol.CompleteRequest) (tracker.Result, error)
}

// ChatTransport runs turns against the in-process chat service.
type ChatTransport struct {
	replier  Replier
	fallback string
	logger   *logging.Logger
}

// NewChatTransport wraps replier as a conversation.Transport.
func NewChatTransport(replier Replier, fallbackReply string, logger *logging.Logger) *ChatTransport {
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatTransport{replier: replier, fallback: fallbackReply, logger: logger}
}

// SendTurn asks the chat service for a reply, returning the fallback on failure.
func (t *ChatTransport) SendTurn(ctx context.Context, req conversation.TurnRequest) conversation.TurnResult {
	resp, err := t.replier.Reply(ctx, protocol.ChatRequest{
		ConversationID: req.ConversationID,
		Message:        req.Text,
		Messages:       conversation.ToWire(req.History),
		LeadInfo:       req.Lead,
	})
	if err != nil {
		t.logger.Warn("webchat: chat reply failed", "conversation_id", req.ConversationID, "error", err)
		return conversation.TurnResult{Reply: t.fallback, Fallback: true}
	}
	out := conversation.TurnResult{Reply: resp.Response}
	if resp.ExtractedInfo != nil {
		out.Patch = *resp.ExtractedInfo
	}
	return out
}

// SummaryNotifier hands finished web-chat conversations to the tracker.
type SummaryNotifier struct {
	processor Processor
	logger    *logging.Logger
}

// NewSummaryNotifier wraps processor as a conversation.Notifier.
func NewSummaryNotifier(processor Processor, logger *logging.Logger) *SummaryNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &SummaryNotifier{processor: processor, logger: logger}
}

// Notify processes the summary in-process.
func (n *SummaryNotifier) Notify(ctx context.Context, summary conversation.Summary) error {
	res, err := n.processor.Process(ctx, summary.CompleteRequest(protocol.SourceWebChat, ""))
	if err != nil {
		return err
	}
	n.logger.Info("webchat: conversation summarized",
		"conversation_id", summary.ConversationID,
		"summary_id", res.SummaryID,
		"reason", string(summary.Reason),
	)
	return nil
}

var (
	_ conversation.Transport = (*ChatTransport)(nil)
	_ conversation.Notifier  = (*SummaryNotifier)(nil)
)
