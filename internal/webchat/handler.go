package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/discovery-widget/internal/conversation"
	"github.com/wolfman30/discovery-widget/pkg/logging"
)

const (
	maxBodyBytes = 64 << 10

	defaultSessionIdle = 30 * time.Minute
)

// Recorder tracks open WebSocket connections.
type Recorder interface {
	SessionOpened()
	SessionClosed()
}

// Options wires a Handler.
type Options struct {
	// Store persists every session's state under "webchat:<session>".
	Store         conversation.Store
	Transport     conversation.Transport
	Notifier      conversation.Notifier
	Policy        conversation.Policy
	Greeting      string
	FallbackReply string
	Metrics       Recorder
	Logger        *logging.Logger

	// SessionIdle is how long a session with no open connection or request
	// stays in memory. It is raised above Policy.IdleTimeout so the idle
	// summary fires before eviction.
	SessionIdle time.Duration
	Now         func() time.Time
}

// Handler manages web chat sessions. Each session id owns one
// conversation.Manager, reused across reconnects.
type Handler struct {
	opts   Options
	logger *logging.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	manager  *conversation.Manager
	refs     int
	lastUsed time.Time
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "reset", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type           string           `json:"type"` // "message", "typing", "history", "session", "pong", "error"
	Text           string           `json:"text,omitempty"`
	Role           string           `json:"role,omitempty"`
	SessionID      string           `json:"session_id,omitempty"`
	ConversationID string           `json:"conversation_id,omitempty"`
	Timestamp      string           `json:"timestamp,omitempty"`
	Fallback       bool             `json:"fallback,omitempty"`
	Finalized      bool             `json:"finalized,omitempty"`
	Messages       []HistoryMessage `json:"messages,omitempty"`
}

// HistoryMessage is a simplified message for history responses.
type HistoryMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// NewHandler creates a web chat handler.
func NewHandler(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Store == nil {
		opts.Store = conversation.NewMemoryStore()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SessionIdle <= 0 {
		opts.SessionIdle = defaultSessionIdle
	}
	if opts.Policy.IdleTimeout > 0 && opts.SessionIdle <= opts.Policy.IdleTimeout {
		opts.SessionIdle = opts.Policy.IdleTimeout + time.Minute
	}
	return &Handler{
		opts:     opts,
		logger:   opts.Logger,
		sessions: make(map[string]*session),
	}
}

// StateKey builds the store key for a webchat session.
func StateKey(sessionID string) string {
	return "webchat:" + sessionID
}

// generateSessionID creates a random session identifier.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	return hex.EncodeToString(b)
}

// acquire returns the session, creating and starting its manager on first
// use. Every acquire must be paired with release.
func (h *Handler) acquire(ctx context.Context, sessionID string) (*session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[sessionID]; ok {
		s.refs++
		s.lastUsed = h.opts.Now()
		return s, nil
	}
	m := conversation.NewManager(conversation.ManagerConfig{
		Store:         h.opts.Store,
		Key:           StateKey(sessionID),
		Transport:     h.opts.Transport,
		Notifier:      h.opts.Notifier,
		Logger:        h.logger.With("session_id", sessionID),
		Policy:        h.opts.Policy,
		Greeting:      h.opts.Greeting,
		FallbackReply: h.opts.FallbackReply,
	})
	if err := m.Start(ctx); err != nil {
		return nil, err
	}
	// The browser widget has no hidden state; replies always land in view.
	m.SetOpen(true)
	s := &session{manager: m, refs: 1, lastUsed: h.opts.Now()}
	h.sessions[sessionID] = s
	return s, nil
}

func (h *Handler) release(s *session) {
	h.mu.Lock()
	s.refs--
	s.lastUsed = h.opts.Now()
	h.mu.Unlock()
}

// Prune evicts sessions that have no open connection or request and are
// either finalized or unused for SessionIdle. Their state stays in the store
// and is reloaded on the next visit. It returns the number evicted.
func (h *Handler) Prune() int {
	now := h.opts.Now()
	h.mu.Lock()
	var evicted []*session
	for id, s := range h.sessions {
		if s.refs > 0 {
			continue
		}
		if now.Sub(s.lastUsed) >= h.opts.SessionIdle || s.manager.Phase() == conversation.PhaseFinalized {
			evicted = append(evicted, s)
			delete(h.sessions, id)
		}
	}
	h.mu.Unlock()

	for _, s := range evicted {
		s.manager.Close()
		s.manager.Wait()
	}
	if len(evicted) > 0 {
		h.logger.Debug("webchat: pruned idle sessions", "count", len(evicted))
	}
	return len(evicted)
}

// Run prunes sessions every interval until done is closed.
func (h *Handler) Run(done <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			h.Prune()
		}
	}
}

// Sessions reports how many sessions are held in memory.
func (h *Handler) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	ctx := r.Context()
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID == "" {
		sessionID = generateSessionID()
	}

	s, err := h.acquire(ctx, sessionID)
	if err != nil {
		h.logger.Error("webchat: failed to start session", "session_id", sessionID, "error", err)
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "Sorry, something went wrong. Please try again."})
		return
	}
	defer h.release(s)

	if h.opts.Metrics != nil {
		h.opts.Metrics.SessionOpened()
		defer h.opts.Metrics.SessionClosed()
	}

	h.sendSession(conn, sessionID, s.manager)
	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Info("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}

		switch msg.Type {
		case "ping":
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
		case "reset":
			s.manager.Reset(ctx)
			h.sendSession(conn, sessionID, s.manager)
		case "message":
			if strings.TrimSpace(msg.Text) == "" {
				continue
			}
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "typing"})
			out, err := s.manager.HandleTurn(ctx, msg.Text)
			if err != nil {
				_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "Sorry, something went wrong. Please try again."})
				continue
			}
			_ = websocket.JSON.Send(conn, replyMessage(out))
		}
	}
}

func (h *Handler) sendSession(conn *websocket.Conn, sessionID string, m *conversation.Manager) {
	st := m.Snapshot()
	_ = websocket.JSON.Send(conn, OutboundMessage{
		Type:           "session",
		SessionID:      sessionID,
		ConversationID: st.ConversationID,
	})
	if len(st.Messages) > 0 {
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "history", Messages: history(st.Messages)})
	}
}

func replyMessage(out conversation.TurnOutcome) OutboundMessage {
	return OutboundMessage{
		Type:           "message",
		Role:           string(conversation.RoleAssistant),
		Text:           out.Reply,
		ConversationID: out.State.ConversationID,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		Fallback:       out.Fallback,
		Finalized:      out.Finalized,
	}
}

func history(msgs []conversation.Message) []HistoryMessage {
	out := make([]HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, HistoryMessage{
			Role:      string(m.Role),
			Text:      m.Content,
			Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return out
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// HandleMessage is the HTTP fallback for sending messages.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = generateSessionID()
	}

	s, err := h.acquire(r.Context(), req.SessionID)
	if err != nil {
		h.logger.Error("webchat: failed to start session", "session_id", req.SessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to start session"})
		return
	}
	defer h.release(s)
	out, err := s.manager.HandleTurn(r.Context(), req.Text)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, conversation.ErrEmptyMessage) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	msg := replyMessage(out)
	msg.SessionID = req.SessionID
	writeJSON(w, http.StatusOK, msg)
}

// HandleReset discards the session's conversation and starts a new one.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id is required"})
		return
	}
	s, err := h.acquire(r.Context(), req.SessionID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to start session"})
		return
	}
	defer h.release(s)
	id := s.manager.Reset(r.Context())
	writeJSON(w, http.StatusOK, OutboundMessage{
		Type:           "session",
		SessionID:      req.SessionID,
		ConversationID: id,
		Messages:       history(s.manager.Snapshot().Messages),
	})
}

// HandleHistory returns chat history for a session.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session parameter required"})
		return
	}
	s, err := h.acquire(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("webchat: failed to load history", "session_id", sessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load history"})
		return
	}
	defer h.release(s)
	st := s.manager.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": st.ConversationID,
		"messages":        history(st.Messages),
	})
}

// Close stops every session and waits for pending summaries.
func (h *Handler) Close() {
	h.mu.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.manager.Close()
	}
	for _, s := range sessions {
		s.manager.Wait()
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
