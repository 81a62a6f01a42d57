package tracker

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/wolfman30/discovery-widget/internal/leads"
	"github.com/wolfman30/discovery-widget/internal/protocol"
)

// Engagement grades how warm a lead is.
type Engagement string

const (
	EngagementHigh   Engagement = "high"
	EngagementMedium Engagement = "medium"
	EngagementLow    Engagement = "low"
)

const maxRenderedImpacts = 8

var (
	scheduleKeywords = []string{"yes", "schedule", "book", "call", "meeting", "let's talk"}
	gapMarkers       = []string{"causing you the most pain", "I'm seeing a few potential gaps"}

	numberedItemRE = regexp.MustCompile(`(?m)^\s*\d\.\s+(.+?)\s*$`)
	leadingDigitRE = regexp.MustCompile(`^\s*(\d)`)
	currentRE      = regexp.MustCompile(`(?s)CURRENT workflow:\s*(.*?)\s*(?:PROPOSED|$)`)
	proposedRE     = regexp.MustCompile(`(?s)PROPOSED workflow:\s*(.*?)\s*(?:Key change|\n\s*\n|$)`)
	impactREs      = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\$[\d,]+(?:\s*(?:per|/)\s*(?:month|year|week))?`),
		regexp.MustCompile(`(?i)\d+\s*(?:hours?|days?|weeks?|months?)`),
		regexp.MustCompile(`\d+%`),
	}
)

// Analysis is the structured read of a finished conversation.
type Analysis struct {
	Contact            leads.Info
	MainProblem        string
	IdentifiedProblems []string
	CurrentWorkflow    string
	ProposedSolution   string
	QuantifiedImpact   []string
	Engagement         Engagement
	WantsToSchedule    bool
	Summary            string
	MessageCount       int
}

// Impacts returns at most the first eight quantified impacts.
func (a Analysis) Impacts() []string {
	if len(a.QuantifiedImpact) > maxRenderedImpacts {
		return a.QuantifiedImpact[:maxRenderedImpacts]
	}
	return a.QuantifiedImpact
}

// Analyze extracts contact details, problems, workflow and impact figures
// from a transcript. Contact fields come from visitor messages only, first
// value wins.
func Analyze(messages []protocol.Message) Analysis {
	a := Analysis{MessageCount: len(messages)}

	var all strings.Builder
	var userMsgs []string
	for _, m := range messages {
		all.WriteString(m.Content)
		all.WriteByte(' ')
		if m.Role == "user" {
			userMsgs = append(userMsgs, m.Content)
			a.Contact.Merge(leads.Extract(m.Content))
		}
	}

	a.WantsToSchedule = wantsToSchedule(userMsgs)
	a.IdentifiedProblems, a.MainProblem = problems(messages)
	a.CurrentWorkflow, a.ProposedSolution = workflow(messages)
	a.QuantifiedImpact = impacts(all.String())
	a.Engagement = engagement(a.WantsToSchedule, a.Contact, len(messages))
	a.Summary = summarize(userMsgs)
	return a
}

func wantsToSchedule(userMsgs []string) bool {
	if len(userMsgs) > 5 {
		userMsgs = userMsgs[len(userMsgs)-5:]
	}
	text := strings.ToLower(strings.Join(userMsgs, " "))
	for _, kw := range scheduleKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// problems reads the numbered gap list the assistant presents and the
// visitor's answer that follows it: a leading digit picks an item, anything
// else is taken verbatim.
func problems(messages []protocol.Message) ([]string, string) {
	listAt := -1
	for i, m := range messages {
		if m.Role != "assistant" {
			continue
		}
		for _, marker := range gapMarkers {
			if strings.Contains(m.Content, marker) {
				listAt = i
				break
			}
		}
		if listAt >= 0 {
			break
		}
	}
	if listAt < 0 {
		return nil, ""
	}

	var items []string
	for _, m := range numberedItemRE.FindAllStringSubmatch(messages[listAt].Content, -1) {
		items = append(items, m[1])
	}
	if len(items) == 0 {
		return nil, ""
	}

	for _, m := range messages[listAt+1:] {
		if m.Role != "user" {
			continue
		}
		answer := strings.TrimSpace(m.Content)
		if d := leadingDigitRE.FindStringSubmatch(answer); d != nil {
			n, _ := strconv.Atoi(d[1])
			if n >= 1 && n <= len(items) {
				return items, items[n-1]
			}
			return items, items[0]
		}
		return items, answer
	}
	return items, ""
}

func workflow(messages []protocol.Message) (string, string) {
	for _, m := range messages {
		if m.Role != "assistant" {
			continue
		}
		if !strings.Contains(m.Content, "CURRENT workflow:") && !strings.Contains(m.Content, "PROPOSED workflow:") {
			continue
		}
		var current, proposed string
		if c := currentRE.FindStringSubmatch(m.Content); c != nil {
			current = strings.TrimSpace(c[1])
		}
		if p := proposedRE.FindStringSubmatch(m.Content); p != nil {
			proposed = strings.TrimSpace(p[1])
		}
		return current, proposed
	}
	return "", ""
}

func impacts(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, re := range impactREs {
		for _, m := range re.FindAllString(text, -1) {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

func engagement(wantsToSchedule bool, contact leads.Info, messageCount int) Engagement {
	switch {
	case wantsToSchedule && contact.Phone != "":
		return EngagementHigh
	case wantsToSchedule || contact.Email != "":
		return EngagementMedium
	case messageCount < 10:
		return EngagementLow
	default:
		return EngagementMedium
	}
}

func summarize(userMsgs []string) string {
	first := "No initial message"
	if len(userMsgs) > 0 {
		first = userMsgs[0]
	}
	if utf8.RuneCountInString(first) > 100 {
		first = string([]rune(first)[:100]) + "..."
	}
	return `Started with: "` + first + `"`
}
