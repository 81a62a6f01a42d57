// Package protocol defines the JSON bodies exchanged between the chat widget
// and the completion and conversation-complete endpoints.
package protocol

import (
	"time"

	"github.com/wolfman30/discovery-widget/internal/leads"
)

// Sources reported in CompleteMetadata.Source.
const (
	SourceWidget  = "widget"
	SourceWebChat = "web-chat"
)

// Message is a transcript entry on the wire. Timestamp is RFC 3339 and may be
// empty when a browser client omits it.
type Message struct {
	Role      string `json:"role" validate:"required,oneof=user assistant"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Time parses Timestamp, returning the zero time when absent or malformed.
func (m Message) Time() time.Time {
	if m.Timestamp == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, m.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FormatTime renders t the way Message.Timestamp expects.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	ConversationID string     `json:"conversationId,omitempty"`
	Message        string     `json:"message" validate:"required"`
	Messages       []Message  `json:"messages" validate:"dive"`
	LeadInfo       leads.Info `json:"leadInfo"`
}

// ChatResponse is the body returned by POST /api/chat.
type ChatResponse struct {
	Response      string      `json:"response"`
	ExtractedInfo *leads.Info `json:"extractedInfo,omitempty"`
}

// ErrorResponse is returned with non-2xx statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CompleteMetadata describes a finished conversation.
type CompleteMetadata struct {
	ConversationID string     `json:"conversationId"`
	EndReason      string     `json:"endReason,omitempty"`
	LeadInfo       leads.Info `json:"leadInfo"`
	Source         string     `json:"source,omitempty"`
	URL            string     `json:"url,omitempty"`
}

// CompleteRequest is the body of POST /api/conversation-complete.
type CompleteRequest struct {
	Messages []Message        `json:"messages" validate:"required,dive"`
	Metadata CompleteMetadata `json:"metadata"`
}

// CompleteResponse is returned by POST /api/conversation-complete.
type CompleteResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	SummaryID string `json:"summaryId,omitempty"`
}
