package conversation

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/discovery-widget/internal/leads"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the transcript.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// EndReason tags why a conversation was summarized.
type EndReason string

const (
	ReasonCompleted EndReason = "completed"
	ReasonIdle      EndReason = "idle"
)

// Phase is the observable lifecycle stage of a conversation.
type Phase string

const (
	PhaseEmpty     Phase = "empty"
	PhaseActive    Phase = "active"
	PhaseFinalized Phase = "finalized"
)

// State is the persisted record of one conversation.
type State struct {
	ConversationID   string     `json:"conversationId"`
	Messages         []Message  `json:"messages"`
	LeadInfo         leads.Info `json:"leadInfo"`
	LeadCaptured     bool       `json:"leadCaptured"`
	MessageCount     int        `json:"messageCount"`
	UserMessageCount int        `json:"userMessageCount"`
	ConversationSent bool       `json:"conversationSent"`
	CreatedAt        time.Time  `json:"createdAt"`
	Timestamp        time.Time  `json:"timestamp"`
}

// Phase derives the lifecycle stage from the stored fields.
func (s *State) Phase() Phase {
	switch {
	case s.ConversationSent:
		return PhaseFinalized
	case len(s.Messages) == 0:
		return PhaseEmpty
	default:
		return PhaseActive
	}
}

// Clone returns a deep copy safe to hand to collaborators.
func (s *State) Clone() State {
	out := *s
	out.Messages = append([]Message(nil), s.Messages...)
	return out
}

// LastUserMessage returns the most recent user message, if any.
func (s *State) LastUserMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// Summary is what the notifier receives once a conversation completes.
type Summary struct {
	ConversationID string
	Messages       []Message
	LeadInfo       leads.Info
	Reason         EndReason
	CreatedAt      time.Time
}

// NewConversationID returns an opaque conversation identifier.
func NewConversationID() string {
	return "conv_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
