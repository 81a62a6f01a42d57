package webchat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/discovery-widget/internal/conversation"
	"github.com/wolfman30/discovery-widget/pkg/logging"
)

type sessionCounter struct {
	mu             sync.Mutex
	opened, closed int
}

func (c *sessionCounter) SessionOpened() { c.mu.Lock(); c.opened++; c.mu.Unlock() }
func (c *sessionCounter) SessionClosed() { c.mu.Lock(); c.closed++; c.mu.Unlock() }

func newTestHandler(t *testing.T, proc *fakeProcessor, metrics Recorder) (*Handler, conversation.Store) {
	t.Helper()
	store := conversation.NewMemoryStore()
	logger := logging.New("error")
	h := NewHandler(Options{
		Store:         store,
		Transport:     NewChatTransport(&fakeReplier{}, "fallback", logger),
		Notifier:      NewSummaryNotifier(proc, logger),
		Greeting:      "What operational challenges are you dealing with?",
		FallbackReply: "fallback",
		Metrics:       metrics,
		Logger:        logger,
	})
	t.Cleanup(h.Close)
	return h, store
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newPruningHandler(t *testing.T, clock *testClock) (*Handler, conversation.Store) {
	t.Helper()
	store := conversation.NewMemoryStore()
	logger := logging.New("error")
	h := NewHandler(Options{
		Store:       store,
		Transport:   NewChatTransport(&fakeReplier{}, "fallback", logger),
		Notifier:    NewSummaryNotifier(&fakeProcessor{}, logger),
		Greeting:    "What operational challenges are you dealing with?",
		Logger:      logger,
		SessionIdle: 30 * time.Minute,
		Now:         clock.Now,
	})
	t.Cleanup(h.Close)
	return h, store
}

func postJSON(h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func TestGenerateSessionID(t *testing.T) {
	s1 := generateSessionID()
	s2 := generateSessionID()
	assert.NotEqual(t, s1, s2)
	assert.Len(t, s1, 32)
}

func TestStateKey(t *testing.T) {
	assert.Equal(t, "webchat:sess456", StateKey("sess456"))
}

func TestHandleMessage_HTTP(t *testing.T) {
	h, store := newTestHandler(t, &fakeProcessor{}, nil)

	w := postJSON(h.HandleMessage, "/chat/message", `{"session_id":"sess1","text":"Hello"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp OutboundMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "message", resp.Type)
	assert.Equal(t, "echo: Hello", resp.Text)
	assert.Equal(t, "sess1", resp.SessionID)
	assert.NotEmpty(t, resp.ConversationID)

	st, err := store.Load(context.Background(), StateKey("sess1"))
	require.NoError(t, err)
	require.Len(t, st.Messages, 3)
	assert.Equal(t, conversation.RoleAssistant, st.Messages[0].Role)
	assert.Equal(t, "Hello", st.Messages[1].Content)
}

func TestHandleMessage_Validation(t *testing.T) {
	h, _ := newTestHandler(t, &fakeProcessor{}, nil)

	assert.Equal(t, http.StatusBadRequest, postJSON(h.HandleMessage, "/chat/message", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, postJSON(h.HandleMessage, "/chat/message", `{"session_id":"s","text":"   "}`).Code)
}

func TestHandleMessage_GeneratesSessionID(t *testing.T) {
	h, _ := newTestHandler(t, &fakeProcessor{}, nil)

	w := postJSON(h.HandleMessage, "/chat/message", `{"text":"Hi"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp OutboundMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
}

func TestHandleMessage_FinalizesOnce(t *testing.T) {
	proc := &fakeProcessor{}
	h, _ := newTestHandler(t, proc, nil)

	for _, text := range []string{"one", "two", "three", "four"} {
		require.Equal(t, http.StatusOK, postJSON(h.HandleMessage, "/chat/message", `{"session_id":"s","text":"`+text+`"}`).Code)
	}
	w := postJSON(h.HandleMessage, "/chat/message", `{"session_id":"s","text":"ok bye"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp OutboundMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Finalized)

	postJSON(h.HandleMessage, "/chat/message", `{"session_id":"s","text":"bye again"}`)
	h.Close()
	assert.Equal(t, 1, proc.count())
	assert.Equal(t, "completed", proc.requests[0].Metadata.EndReason)
	assert.Len(t, proc.requests[0].Messages, 11)
}

func TestHandleReset(t *testing.T) {
	h, _ := newTestHandler(t, &fakeProcessor{}, nil)

	w := postJSON(h.HandleMessage, "/chat/message", `{"session_id":"s","text":"Hello"}`)
	var first OutboundMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))

	w = postJSON(h.HandleReset, "/chat/reset", `{"session_id":"s"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var reset OutboundMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reset))
	assert.NotEqual(t, first.ConversationID, reset.ConversationID)
	require.Len(t, reset.Messages, 1)
	assert.Equal(t, "assistant", reset.Messages[0].Role)

	assert.Equal(t, http.StatusBadRequest, postJSON(h.HandleReset, "/chat/reset", `{}`).Code)
}

func TestHandleHistory(t *testing.T) {
	h, _ := newTestHandler(t, &fakeProcessor{}, nil)
	postJSON(h.HandleMessage, "/chat/message", `{"session_id":"sess1","text":"Hello"}`)

	req := httptest.NewRequest(http.MethodGet, "/chat/history?session=sess1", nil)
	w := httptest.NewRecorder()
	h.HandleHistory(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ConversationID string           `json:"conversation_id"`
		Messages       []HistoryMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 3)
	assert.Equal(t, "user", resp.Messages[1].Role)
	assert.Equal(t, "Hello", resp.Messages[1].Text)
	assert.Equal(t, "echo: Hello", resp.Messages[2].Text)
}

func TestHandleHistory_MissingParams(t *testing.T) {
	h, _ := newTestHandler(t, &fakeProcessor{}, nil)
	w := httptest.NewRecorder()
	h.HandleHistory(w, httptest.NewRequest(http.MethodGet, "/chat/history", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func dialSession(t *testing.T, srv *httptest.Server, session string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws?session=" + session
	conn, err := websocket.Dial(url, "", "http://localhost/")
	require.NoError(t, err)
	return conn
}

func receive(t *testing.T, conn *websocket.Conn) OutboundMessage {
	t.Helper()
	var msg OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	return msg
}

func TestWebSocketConversation(t *testing.T) {
	counter := &sessionCounter{}
	h, _ := newTestHandler(t, &fakeProcessor{}, counter)
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	conn := dialSession(t, srv, "abc")
	session := receive(t, conn)
	assert.Equal(t, "session", session.Type)
	assert.Equal(t, "abc", session.SessionID)
	hist := receive(t, conn)
	assert.Equal(t, "history", hist.Type)
	require.Len(t, hist.Messages, 1)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "ping"}))
	assert.Equal(t, "pong", receive(t, conn).Type)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "hello"}))
	assert.Equal(t, "typing", receive(t, conn).Type)
	reply := receive(t, conn)
	assert.Equal(t, "message", reply.Type)
	assert.Equal(t, "echo: hello", reply.Text)
	assert.Equal(t, session.ConversationID, reply.ConversationID)
	require.NoError(t, conn.Close())

	// Reconnecting resumes the same conversation.
	conn = dialSession(t, srv, "abc")
	defer conn.Close()
	again := receive(t, conn)
	assert.Equal(t, session.ConversationID, again.ConversationID)
	hist = receive(t, conn)
	assert.Len(t, hist.Messages, 3)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "reset"}))
	fresh := receive(t, conn)
	assert.Equal(t, "session", fresh.Type)
	assert.NotEqual(t, session.ConversationID, fresh.ConversationID)

	counter.mu.Lock()
	assert.Equal(t, 2, counter.opened)
	counter.mu.Unlock()
}

func TestPruneEvictsIdleSessions(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	h, _ := newPruningHandler(t, clock)

	for i := 0; i < 1000; i++ {
		w := httptest.NewRecorder()
		h.HandleHistory(w, httptest.NewRequest(http.MethodGet, "/chat/history?session=s"+strconv.Itoa(i), nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	require.Equal(t, 1000, h.Sessions())

	clock.Advance(10 * time.Minute)
	assert.Equal(t, 0, h.Prune())
	assert.Equal(t, 1000, h.Sessions())

	clock.Advance(25 * time.Minute)
	assert.Equal(t, 1000, h.Prune())
	assert.Equal(t, 0, h.Sessions())
}

func TestPruneReloadsPersistedState(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	h, _ := newPruningHandler(t, clock)

	w := postJSON(h.HandleMessage, "/chat/message", `{"session_id":"keep","text":"Hello"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var first OutboundMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))

	clock.Advance(time.Hour)
	require.Equal(t, 1, h.Prune())

	rr := httptest.NewRecorder()
	h.HandleHistory(rr, httptest.NewRequest(http.MethodGet, "/chat/history?session=keep", nil))
	var resp struct {
		ConversationID string           `json:"conversation_id"`
		Messages       []HistoryMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, first.ConversationID, resp.ConversationID)
	assert.Len(t, resp.Messages, 3)
}

func TestPruneKeepsSessionsInUse(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	h, _ := newPruningHandler(t, clock)

	s, err := h.acquire(context.Background(), "busy")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	assert.Equal(t, 0, h.Prune())

	h.release(s)
	assert.Equal(t, 0, h.Prune(), "release refreshes last use")

	clock.Advance(time.Hour)
	assert.Equal(t, 1, h.Prune())
}

func TestPruneEvictsFinalizedSessions(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	h, store := newPruningHandler(t, clock)

	now := time.Now()
	require.NoError(t, store.Save(context.Background(), StateKey("done"), &conversation.State{
		ConversationID:   "conv_done",
		Messages:         []conversation.Message{{Role: conversation.RoleAssistant, Content: "hi", Timestamp: now}},
		MessageCount:     1,
		ConversationSent: true,
		CreatedAt:        now,
		Timestamp:        now,
	}))

	s, err := h.acquire(context.Background(), "done")
	require.NoError(t, err)
	h.release(s)

	assert.Equal(t, 1, h.Prune())
	assert.Equal(t, 0, h.Sessions())
}

func TestSessionIdleOutlastsIdleTimeout(t *testing.T) {
	h := NewHandler(Options{
		Policy:      conversation.Policy{IdleTimeout: 45 * time.Minute},
		SessionIdle: 30 * time.Minute,
		Logger:      logging.New("error"),
	})
	assert.Greater(t, h.opts.SessionIdle, 45*time.Minute)
}
