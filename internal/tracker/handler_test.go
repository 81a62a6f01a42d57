package tracker

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/discovery-widget/internal/notify"
	"github.com/wolfman30/discovery-widget/internal/protocol"
	"github.com/wolfman30/discovery-widget/pkg/logging"
)

func postComplete(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/conversation-complete", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Complete(rec, req)
	return rec
}

func completeBody(t *testing.T, msgs []protocol.Message) string {
	t.Helper()
	raw, err := json.Marshal(protocol.CompleteRequest{
		Messages: msgs,
		Metadata: protocol.CompleteMetadata{ConversationID: "conv_1", EndReason: "completed", Source: protocol.SourceWidget},
	})
	require.NoError(t, err)
	return string(raw)
}

func TestCompleteHandlerSuccess(t *testing.T) {
	sender := &notify.RecordingSender{}
	h := NewHandler(newTestService(sender, nil, nil), logging.New("error"))

	rec := postComplete(t, h, completeBody(t, discoveryTranscript()))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp protocol.CompleteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Conversation processed and email sent", resp.Message)
	assert.NotEmpty(t, resp.SummaryID)
	assert.Len(t, sender.Sent(), 1)
}

func TestCompleteHandlerErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		sender *notify.RecordingSender
		status int
		errMsg string
	}{
		{"invalid json", "{", &notify.RecordingSender{}, http.StatusBadRequest, "Invalid request body"},
		{"missing messages", `{"metadata":{}}`, &notify.RecordingSender{}, http.StatusBadRequest, "Messages array is required"},
		{"bad role", `{"messages":[{"role":"system","content":"x"}]}`, &notify.RecordingSender{}, http.StatusBadRequest, "Invalid field: CompleteRequest.Messages[0].Role"},
		{"too short", completeBody(t, discoveryTranscript()[:4]), &notify.RecordingSender{}, http.StatusBadRequest, "Minimum 10 messages required"},
		{"send failure", completeBody(t, discoveryTranscript()), &notify.RecordingSender{Err: errors.New("down")}, http.StatusInternalServerError, "Failed to process conversation"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(newTestService(tc.sender, nil, nil), logging.New("error"))
			rec := postComplete(t, h, tc.body)
			assert.Equal(t, tc.status, rec.Code)

			var resp protocol.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.errMsg, resp.Error)
		})
	}
}
