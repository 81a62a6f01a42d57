package conversation

import (
	"strings"
	"time"
)

// Policy holds the thresholds that decide when a conversation is complete.
type Policy struct {
	// MaxMessages closes the conversation regardless of content.
	MaxMessages int
	// MinMessages is the shortest conversation worth summarizing.
	MinMessages int
	// IdleTimeout is how long the user may stay silent before an idle summary.
	IdleTimeout time.Duration
	// StateTTL discards persisted state older than this on load.
	StateTTL time.Duration
	// GoodbyePhrases end a conversation once MinMessages is reached.
	GoodbyePhrases []string
}

// DefaultPolicy returns the production thresholds.
func DefaultPolicy() Policy {
	return Policy{
		MaxMessages:    30,
		MinMessages:    10,
		IdleTimeout:    10 * time.Minute,
		StateTTL:       24 * time.Hour,
		GoodbyePhrases: []string{"goodbye", "bye", "talk soon", "ttyl"},
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.MaxMessages <= 0 {
		p.MaxMessages = def.MaxMessages
	}
	if p.MinMessages <= 0 {
		p.MinMessages = def.MinMessages
	}
	if p.StateTTL <= 0 {
		p.StateTTL = def.StateTTL
	}
	if len(p.GoodbyePhrases) == 0 {
		p.GoodbyePhrases = def.GoodbyePhrases
	}
	return p
}

// IsComplete reports whether st has hit the hard cap, or is long enough and
// the last user message says goodbye.
func (p Policy) IsComplete(st *State) bool {
	if st.MessageCount >= p.MaxMessages {
		return true
	}
	if len(st.Messages) < p.MinMessages {
		return false
	}
	last, ok := st.LastUserMessage()
	if !ok {
		return false
	}
	return p.saysGoodbye(last.Content)
}

func (p Policy) saysGoodbye(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range p.GoodbyePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Stale reports whether st was last written more than StateTTL before now.
func (p Policy) Stale(st *State, now time.Time) bool {
	if st.Timestamp.IsZero() {
		return true
	}
	return now.Sub(st.Timestamp) >= p.StateTTL
}
