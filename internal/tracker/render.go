package tracker

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/wolfman30/discovery-widget/internal/leads"
	"github.com/wolfman30/discovery-widget/internal/protocol"
)

// ContactURL is where the lead recap sends visitors.
const ContactURL = "https://www.aisync101.com#contact"

const recapSubject = "Your AI Sync 101 Discovery Summary"

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	summaryHTML = htmltemplate.Must(htmltemplate.New("summary.html.tmpl").
			Funcs(htmltemplate.FuncMap{"upper": func(e Engagement) string { return strings.ToUpper(string(e)) }}).
			ParseFS(templateFS, "templates/summary.html.tmpl"))
	recapHTML = htmltemplate.Must(htmltemplate.New("recap.html.tmpl").
			Funcs(htmltemplate.FuncMap{"join": strings.Join}).
			ParseFS(templateFS, "templates/recap.html.tmpl"))
	recapText = texttemplate.Must(texttemplate.New("recap.txt.tmpl").
			Funcs(texttemplate.FuncMap{"join": strings.Join}).
			ParseFS(templateFS, "templates/recap.txt.tmpl"))
)

var engagementColors = map[Engagement]string{
	EngagementHigh:   "#10b981",
	EngagementMedium: "#f59e0b",
	EngagementLow:    "#6b7280",
}

// Subject builds the team email subject line.
func Subject(a Analysis) string {
	c := a.Contact
	switch {
	case c.Name != "" && c.Company != "":
		return fmt.Sprintf("Discovery: %s from %s", c.Name, c.Company)
	case c.Company != "":
		return "Discovery: " + c.Company
	case c.Name != "":
		return "Discovery: " + c.Name
	default:
		return fmt.Sprintf("Discovery Conversation - %s engagement", a.Engagement)
	}
}

// Transcript renders messages as plain text, one block per message.
func Transcript(messages []protocol.Message) string {
	blocks := make([]string, 0, len(messages))
	for _, m := range messages {
		who := "AI"
		if m.Role == "user" {
			who = "VISITOR"
		}
		when := m.Timestamp
		if t := m.Time(); !t.IsZero() {
			when = t.Format("3:04:05 PM")
		}
		blocks = append(blocks, fmt.Sprintf("[%s - %s]:\n%s\n", who, when, m.Content))
	}
	return strings.Join(blocks, "\n")
}

type summaryView struct {
	Analysis        Analysis
	Timestamp       string
	EngagementColor htmltemplate.CSS
	NoContact       bool
	Transcript      string
}

// RenderSummary returns the HTML and plain-text bodies of the team email.
func RenderSummary(a Analysis, messages []protocol.Message, now time.Time) (string, string, error) {
	transcript := Transcript(messages)
	color, ok := engagementColors[a.Engagement]
	if !ok {
		color = engagementColors[EngagementLow]
	}
	view := summaryView{
		Analysis:        a,
		Timestamp:       now.UTC().Format("Jan 2, 2006 3:04 PM MST"),
		EngagementColor: htmltemplate.CSS(color),
		NoContact:       a.Contact.Name == "" && a.Contact.Email == "" && a.Contact.Phone == "",
		Transcript:      transcript,
	}
	var buf bytes.Buffer
	if err := summaryHTML.Execute(&buf, view); err != nil {
		return "", "", fmt.Errorf("tracker: render summary: %w", err)
	}
	return buf.String(), plainSummary(a, transcript), nil
}

func plainSummary(a Analysis, transcript string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Engagement: %s\n", strings.ToUpper(string(a.Engagement)))
	if a.WantsToSchedule {
		b.WriteString("Visitor expressed interest in scheduling a call.\n")
	}
	b.WriteString(a.Summary + "\n\n")
	c := a.Contact
	for _, f := range [][2]string{
		{"Name", c.Name}, {"Company", c.Company}, {"Email", c.Email},
		{"Phone", c.Phone}, {"Website", c.Website}, {"Intent", string(c.Intent)},
	} {
		if f[1] != "" {
			fmt.Fprintf(&b, "%s: %s\n", f[0], f[1])
		}
	}
	if a.MainProblem != "" {
		fmt.Fprintf(&b, "\nMain problem: %s\n", a.MainProblem)
	}
	if impacts := a.Impacts(); len(impacts) > 0 {
		fmt.Fprintf(&b, "Quantified impact: %s\n", strings.Join(impacts, ", "))
	}
	b.WriteString("\n--- Transcript ---\n\n")
	b.WriteString(transcript)
	return b.String()
}

type recapView struct {
	Name       string
	Problem    string
	Impacts    []string
	ContactURL string
}

// RenderRecap returns the subject, HTML and text of the visitor recap email.
func RenderRecap(lead leads.Info, a Analysis) (string, string, string, error) {
	problem := a.MainProblem
	if problem == "" {
		problem = lead.Problem
	}
	view := recapView{Name: lead.Name, Problem: problem, Impacts: a.Impacts(), ContactURL: ContactURL}

	var html, text bytes.Buffer
	if err := recapHTML.Execute(&html, view); err != nil {
		return "", "", "", fmt.Errorf("tracker: render recap: %w", err)
	}
	if err := recapText.Execute(&text, view); err != nil {
		return "", "", "", fmt.Errorf("tracker: render recap: %w", err)
	}
	return recapSubject, html.String(), text.String(), nil
}
