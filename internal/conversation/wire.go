package conversation

import "github.com/wolfman30/discovery-widget/internal/protocol"

// ToWire converts transcript messages to their JSON wire shape.
func ToWire(msgs []Message) []protocol.Message {
	out := make([]protocol.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, protocol.Message{
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: protocol.FormatTime(m.Timestamp),
		})
	}
	return out
}

// FromWire converts wire messages, dropping entries with an unknown role.
func FromWire(msgs []protocol.Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		role := Role(m.Role)
		if role != RoleUser && role != RoleAssistant {
			continue
		}
		out = append(out, Message{Role: role, Content: m.Content, Timestamp: m.Time()})
	}
	return out
}

// CompleteRequest builds the notification body for s.
func (s Summary) CompleteRequest(source, url string) protocol.CompleteRequest {
	return protocol.CompleteRequest{
		Messages: ToWire(s.Messages),
		Metadata: protocol.CompleteMetadata{
			ConversationID: s.ConversationID,
			EndReason:      string(s.Reason),
			LeadInfo:       s.LeadInfo,
			Source:         source,
			URL:            url,
		},
	}
}
