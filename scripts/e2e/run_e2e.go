// Package main runs E2E scenarios against a deployed discovery widget API.
//
// Scenarios cover:
//   - Health endpoint
//   - Single completion turn with contact extraction
//   - Request validation on /api/chat and /api/conversation-complete
//   - Full conversation-complete submission
//   - Web chat HTTP fallback (message, history, reset)
//
// The completion scenarios call the configured LLM and, for
// conversation-complete, send a real summary email.
//
// Usage:
//
//	API_BASE_URL=... go run scripts/e2e/run_e2e.go              # runs all
//	API_BASE_URL=... go run scripts/e2e/run_e2e.go chat-turn    # runs one
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/wolfman30/discovery-widget/internal/leads"
	"github.com/wolfman30/discovery-widget/internal/protocol"
)

var (
	apiBase string
	client  = &http.Client{Timeout: 60 * time.Second}
)

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed int
	failed int
	name   string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...interface{}) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

// postJSON sends body and decodes the response into out when non-nil.
func postJSON(path string, body any, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	resp, err := client.Post(apiBase+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s: %w (body %q)", path, err, string(raw))
		}
	}
	return resp.StatusCode, nil
}

func getJSON(path string, out any) (int, error) {
	resp, err := client.Get(apiBase + path)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out == nil {
		return resp.StatusCode, nil
	}
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
}

func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

func transcript(turns ...string) []protocol.Message {
	now := time.Now().Add(-time.Duration(len(turns)) * time.Minute)
	msgs := make([]protocol.Message, 0, len(turns))
	for i, content := range turns {
		role := "user"
		if i%2 == 0 {
			role = "assistant"
		}
		msgs = append(msgs, protocol.Message{
			Role:      role,
			Content:   content,
			Timestamp: protocol.FormatTime(now.Add(time.Duration(i) * time.Minute)),
		})
	}
	return msgs
}

// 1. Health
func scenarioHealth(t *T) {
	var body map[string]string
	status, err := getJSON("/health", &body)
	if err != nil {
		t.fatalf("health: %v", err)
		return
	}
	t.check("health returns 200", status == http.StatusOK)
	t.check("service name reported", body["service"] == "discovery-widget")
}

// 2. Single completion turn with contact details in the message
func scenarioChatTurn(t *T) {
	req := protocol.ChatRequest{
		ConversationID: fmt.Sprintf("e2e-%d", time.Now().UnixNano()),
		Message:        "Hi, I'm Jordan Lee from Northwind Logistics. Reach me at jordan@northwind.test. We lose hours every week re-keying invoices.",
		Messages: transcript(
			"Hi! I'm here to help you find where AI could save your team time. What does your business do?",
		),
	}
	var resp protocol.ChatResponse
	status, err := postJSON("/api/chat", req, &resp)
	if err != nil {
		t.fatalf("chat: %v", err)
		return
	}
	t.check("chat returns 200", status == http.StatusOK)
	t.check("assistant replied", strings.TrimSpace(resp.Response) != "")
	t.check("extracted info present", resp.ExtractedInfo != nil)
	if resp.ExtractedInfo != nil {
		t.check("email extracted", resp.ExtractedInfo.Email == "jordan@northwind.test")
		t.check("company extracted", containsAny(resp.ExtractedInfo.Company, "northwind"))
	}
}

// 3. Validation errors
func scenarioValidation(t *T) {
	var errResp protocol.ErrorResponse
	status, err := postJSON("/api/chat", map[string]any{"message": ""}, &errResp)
	if err != nil {
		t.fatalf("chat: %v", err)
		return
	}
	t.check("empty message rejected", status == http.StatusBadRequest)

	status, err = postJSON("/api/conversation-complete", map[string]any{"metadata": map[string]any{}}, &errResp)
	if err != nil {
		t.fatalf("complete: %v", err)
		return
	}
	t.check("missing messages rejected", status == http.StatusBadRequest)

	status, err = postJSON("/api/conversation-complete", protocol.CompleteRequest{
		Messages: transcript("Hi there", "hello"),
	}, &errResp)
	if err != nil {
		t.fatalf("complete: %v", err)
		return
	}
	t.check("short transcript rejected", status == http.StatusBadRequest)
	t.check("minimum message count reported", containsAny(errResp.Error, "minimum"))
}

// 4. Full conversation-complete submission
func scenarioConversationComplete(t *T) {
	req := protocol.CompleteRequest{
		Messages: transcript(
			"Hi! What does your business do?",
			"We run a small accounting firm, Ledgerly.",
			"What takes the most time each week?",
			"Chasing clients for receipts, honestly.",
			"Which of these is the biggest gap?\n1. Document collection\n2. Client follow-ups\n3. Data entry",
			"2",
			"CURRENT workflow: staff email each client by hand.\n\nPROPOSED workflow: automated reminders with upload links.\n\nKey change: no manual chasing.",
			"That would save us about 6 hours per week.",
			"Would you like to book a call with our team?",
			"Yes, schedule a call. I'm Sam Ortiz, sam@ledgerly.test",
			"Great, someone will reach out shortly.",
		),
		Metadata: protocol.CompleteMetadata{
			ConversationID: fmt.Sprintf("e2e-%d", time.Now().UnixNano()),
			EndReason:      "completed",
			LeadInfo:       leads.Info{Company: "Ledgerly"},
			Source:         protocol.SourceWidget,
		},
	}
	var resp protocol.CompleteResponse
	status, err := postJSON("/api/conversation-complete", req, &resp)
	if err != nil {
		t.fatalf("complete: %v", err)
		return
	}
	t.check("complete returns 200", status == http.StatusOK)
	t.check("success flag set", resp.Success)
	t.check("summary id assigned", resp.SummaryID != "")
}

// 5. Web chat HTTP fallback
func scenarioWebChat(t *T) {
	session := fmt.Sprintf("e2e-%d", time.Now().UnixNano())

	var reply map[string]any
	status, err := postJSON("/chat/message", map[string]string{"session_id": session, "text": "Hello, we're a 12-person design studio"}, &reply)
	if err != nil {
		t.fatalf("message: %v", err)
		return
	}
	t.check("message returns 200", status == http.StatusOK)
	text, _ := reply["text"].(string)
	t.check("assistant replied", strings.TrimSpace(text) != "")

	var hist struct {
		ConversationID string           `json:"conversation_id"`
		Messages       []map[string]any `json:"messages"`
	}
	if _, err := getJSON("/chat/history?session="+session, &hist); err != nil {
		t.fatalf("history: %v", err)
		return
	}
	t.check("history has greeting, question and reply", len(hist.Messages) >= 3)

	var reset map[string]any
	if _, err := postJSON("/chat/reset", map[string]string{"session_id": session}, &reset); err != nil {
		t.fatalf("reset: %v", err)
		return
	}
	newID, _ := reset["conversation_id"].(string)
	t.check("reset starts a new conversation", newID != "" && newID != hist.ConversationID)
}

func main() {
	apiBase = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if apiBase == "" {
		fmt.Fprintln(os.Stderr, "ERROR: API_BASE_URL required")
		os.Exit(1)
	}

	scenarios := []scenario{
		{"health", scenarioHealth},
		{"chat-turn", scenarioChatTurn},
		{"validation", scenarioValidation},
		{"conversation-complete", scenarioConversationComplete},
		{"webchat", scenarioWebChat},
	}

	filter := ""
	if len(os.Args) > 1 {
		filter = os.Args[1]
	}

	totalPassed := 0
	totalFailed := 0
	scenarioResults := make([]string, 0)

	for _, s := range scenarios {
		if filter != "" && s.Name != filter {
			continue
		}

		fmt.Printf("\n========================================\n")
		fmt.Printf("SCENARIO: %s\n", s.Name)
		fmt.Printf("========================================\n")

		t := &T{name: s.Name}
		s.Fn(t)

		totalPassed += t.passed
		totalFailed += t.failed

		status := "OK"
		if t.failed > 0 {
			status = "FAILED"
		}
		scenarioResults = append(scenarioResults, fmt.Sprintf("  %s %s (%d passed, %d failed)", status, s.Name, t.passed, t.failed))
	}

	fmt.Printf("\n========================================\n")
	fmt.Println("SUMMARY")
	fmt.Printf("========================================\n")
	for _, r := range scenarioResults {
		fmt.Println(r)
	}
	fmt.Printf("\nTotal: %d passed, %d failed\n", totalPassed, totalFailed)

	if totalFailed > 0 {
		fmt.Println("\nSOME SCENARIOS FAILED")
		os.Exit(1)
	}
	fmt.Println("\nALL SCENARIOS PASSED")
}
