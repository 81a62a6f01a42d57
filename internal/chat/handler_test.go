package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/discovery-widget/internal/protocol"
	"github.com/wolfman30/discovery-widget/pkg/logging"
)

type countingRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (c *countingRecorder) ObserveChatTurn(outcome string, _ time.Duration) {
	c.mu.Lock()
	c.outcomes = append(c.outcomes, outcome)
	c.mu.Unlock()
}

func TestHandlerChat(t *testing.T) {
	tests := []struct {
		name       string
		llm        *fakeLLM
		body       string
		wantStatus int
		wantBody   string
		outcome    string
	}{
		{
			name:       "ok",
			llm:        &fakeLLM{text: "What's your website?"},
			body:       `{"message":"I'm Carlos","messages":[],"leadInfo":{}}`,
			wantStatus: http.StatusOK,
			wantBody:   `"response":"What's your website?"`,
			outcome:    "ok",
		},
		{
			name:       "blank message",
			llm:        &fakeLLM{},
			body:       `{"message":"   "}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Message is required",
			outcome:    "bad_request",
		},
		{
			name:       "invalid json",
			llm:        &fakeLLM{},
			body:       `{"message":`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Invalid request body",
			outcome:    "bad_request",
		},
		{
			name:       "bad role",
			llm:        &fakeLLM{},
			body:       `{"message":"hi","messages":[{"role":"system","content":"x"}]}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Invalid field",
			outcome:    "bad_request",
		},
		{
			name:       "llm failure",
			llm:        &fakeLLM{err: errors.New("boom")},
			body:       `{"message":"hi"}`,
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Failed to get response from AI",
			outcome:    "llm_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &countingRecorder{}
			h := NewHandler(newService(tt.llm), rec, logging.New("error"))

			req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.Chat(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Contains(t, w.Body.String(), tt.wantBody)
			assert.Equal(t, []string{tt.outcome}, rec.outcomes)
		})
	}
}

func TestHandlerChat_ReturnsExtractedInfo(t *testing.T) {
	h := NewHandler(newService(&fakeLLM{text: "Nice to meet you."}), nil, logging.New("error"))

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"reach me at (555) 123-4567"}`))
	w := httptest.NewRecorder()
	h.Chat(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp protocol.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.ExtractedInfo)
	assert.Equal(t, "(555) 123-4567", resp.ExtractedInfo.Phone)
}
