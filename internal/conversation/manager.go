package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/discovery-widget/internal/leads"
	"github.com/wolfman30/discovery-widget/pkg/logging"
)

const defaultNotifyTimeout = 30 * time.Second

// TurnRequest is the read-only context handed to a Transport for one turn.
type TurnRequest struct {
	ConversationID string
	History        []Message
	Lead           leads.Info
	Text           string
}

// TurnResult is the proposed delta a Transport returns.
type TurnResult struct {
	Reply    string
	Patch    leads.Info
	Fallback bool
}

// Transport relays a turn to the completion service. Implementations never
// fail; they return a fallback reply instead.
type Transport interface {
	SendTurn(ctx context.Context, req TurnRequest) TurnResult
}

// Notifier delivers a finished conversation. It is called at most once per
// conversation id.
type Notifier interface {
	Notify(ctx context.Context, summary Summary) error
}

// ManagerConfig wires a Manager.
type ManagerConfig struct {
	Store         Store
	Key           string
	Transport     Transport
	Notifier      Notifier
	Logger        *logging.Logger
	Policy        Policy
	Greeting      string
	FallbackReply string
	NotifyTimeout time.Duration
	// OnFinalize runs after each notifier attempt with its outcome.
	OnFinalize func(summary Summary, err error)

	Now   func() time.Time
	NewID func() string
}

// TurnOutcome reports what a HandleTurn call did.
type TurnOutcome struct {
	Reply       string
	Fallback    bool
	LeadChanged bool
	Finalized   bool
	State       State
}

// Manager owns one conversation's state. All mutation goes through its methods.
type Manager struct {
	store         Store
	key           string
	transport     Transport
	notifier      Notifier
	logger        *logging.Logger
	policy        Policy
	greeting      string
	fallbackReply string
	notifyTimeout time.Duration
	onFinalize    func(Summary, error)
	now           func() time.Time
	newID         func() string

	mu      sync.Mutex
	state   State
	open    bool
	pending bool
	closed  bool
	idle    *time.Timer
	idleGen uint64

	turnMu   sync.Mutex
	dispatch sync.WaitGroup
}

// NewManager builds a manager with an empty state. Call Start to load
// persisted state.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if strings.TrimSpace(cfg.Key) == "" {
		cfg.Key = DefaultStateKey
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = NewConversationID
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}
	m := &Manager{
		store:         cfg.Store,
		key:           cfg.Key,
		transport:     cfg.Transport,
		notifier:      cfg.Notifier,
		logger:        cfg.Logger,
		policy:        cfg.Policy.withDefaults(),
		greeting:      strings.TrimSpace(cfg.Greeting),
		fallbackReply: cfg.FallbackReply,
		notifyTimeout: cfg.NotifyTimeout,
		onFinalize:    cfg.OnFinalize,
		now:           cfg.Now,
		newID:         cfg.NewID,
		open:          true,
	}
	m.state = m.freshState()
	return m
}

func (m *Manager) freshState() State {
	now := m.now().UTC()
	return State{
		ConversationID: m.newID(),
		Messages:       []Message{},
		CreatedAt:      now,
		Timestamp:      now,
	}
}

// Start loads persisted state, discarding it when stale or unreadable, and
// seeds the greeting into an empty conversation.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, err := m.store.Load(ctx, m.key)
	switch {
	case err == nil:
		if m.policy.Stale(st, m.now()) {
			m.logger.Info("conversation: discarding stale state", "key", m.key, "conversation_id", st.ConversationID, "saved_at", st.Timestamp)
			m.deleteLocked(ctx)
			m.state = m.freshState()
		} else {
			if st.Messages == nil {
				st.Messages = []Message{}
			}
			m.state = *st
		}
	case errors.Is(err, ErrStateNotFound):
		m.state = m.freshState()
	case errors.Is(err, ErrCorruptState):
		m.logger.Warn("conversation: discarding unreadable state", "key", m.key, "error", err)
		m.deleteLocked(ctx)
		m.state = m.freshState()
	default:
		m.logger.Error("conversation: failed to load state", "key", m.key, "error", err)
		m.state = m.freshState()
	}

	if len(m.state.Messages) == 0 && m.greeting != "" {
		m.appendLocked(RoleAssistant, m.greeting)
	}
	m.persistLocked(ctx)
	return nil
}

// AppendUserMessage records user input. Blank input is ignored and returns false.
func (m *Manager) AppendUserMessage(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.appendLocked(RoleUser, text)
	m.state.UserMessageCount++
	m.persistLocked(ctx)
	m.armIdleLocked()
	return true
}

// AppendAssistantMessage records a reply. While the widget is closed the
// reply also raises the pending-notification flag.
func (m *Manager) AppendAssistantMessage(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.appendLocked(RoleAssistant, text)
	if !m.open {
		m.pending = true
	}
	m.persistLocked(ctx)
	return true
}

func (m *Manager) appendLocked(role Role, text string) {
	m.state.Messages = append(m.state.Messages, Message{
		Role:      role,
		Content:   text,
		Timestamp: m.now().UTC(),
	})
	m.state.MessageCount++
}

// MergeLeadInfo applies patch with first-non-empty-wins semantics and reports
// whether anything changed.
func (m *Manager) MergeLeadInfo(ctx context.Context, patch leads.Info) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.LeadInfo.Merge(patch) {
		return false
	}
	if m.state.LeadInfo.Captured() {
		m.state.LeadCaptured = true
	}
	m.persistLocked(ctx)
	return true
}

// IsComplete reports whether the conversation meets a completion condition.
func (m *Manager) IsComplete() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.policy.IsComplete(&m.state)
}

// HasCompleteLeadInfo reports whether name, email and company or website are known.
func (m *Manager) HasCompleteLeadInfo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.LeadInfo.Complete()
}

// FinalizeIfComplete marks the conversation sent and dispatches the summary
// in the background. ReasonCompleted requires IsComplete; ReasonIdle only
// requires the minimum length. It returns true when a dispatch was started.
func (m *Manager) FinalizeIfComplete(ctx context.Context, reason EndReason) bool {
	return m.finalize(ctx, reason, 0)
}

func (m *Manager) finalize(ctx context.Context, reason EndReason, idleGen uint64) bool {
	m.mu.Lock()
	if idleGen != 0 && idleGen != m.idleGen {
		m.mu.Unlock()
		return false
	}
	if m.state.ConversationSent || !m.eligibleLocked(reason) {
		m.mu.Unlock()
		return false
	}

	m.state.ConversationSent = true
	m.stopIdleLocked()
	m.persistLocked(ctx)
	summary := Summary{
		ConversationID: m.state.ConversationID,
		Messages:       append([]Message(nil), m.state.Messages...),
		LeadInfo:       m.state.LeadInfo,
		Reason:         reason,
		CreatedAt:      m.state.CreatedAt,
	}
	m.dispatch.Add(1)
	m.mu.Unlock()

	go m.deliver(context.WithoutCancel(ctx), summary)
	return true
}

func (m *Manager) eligibleLocked(reason EndReason) bool {
	if reason == ReasonIdle {
		return len(m.state.Messages) >= m.policy.MinMessages
	}
	return m.policy.IsComplete(&m.state)
}

func (m *Manager) deliver(ctx context.Context, summary Summary) {
	defer m.dispatch.Done()

	ctx, cancel := context.WithTimeout(ctx, m.notifyTimeout)
	defer cancel()

	var err error
	if m.notifier == nil {
		m.logger.Warn("conversation: no notifier configured, summary dropped", "conversation_id", summary.ConversationID)
	} else {
		err = m.notifier.Notify(ctx, summary)
	}
	if err != nil {
		m.logger.Error("conversation: summary delivery failed", "conversation_id", summary.ConversationID, "reason", summary.Reason, "error", err)
	} else if m.notifier != nil {
		m.logger.Info("conversation: summary delivered", "conversation_id", summary.ConversationID, "reason", summary.Reason, "messages", len(summary.Messages))
	}
	if m.onFinalize != nil {
		m.onFinalize(summary, err)
	}
}

// Reset discards the conversation and starts a new one with a fresh id.
func (m *Manager) Reset(ctx context.Context) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopIdleLocked()
	m.deleteLocked(ctx)
	prev := m.state.ConversationID
	m.state = m.freshState()
	m.pending = false
	m.logger.Info("conversation: reset", "key", m.key, "previous_id", prev, "conversation_id", m.state.ConversationID)
	if m.greeting != "" {
		m.appendLocked(RoleAssistant, m.greeting)
	}
	m.persistLocked(ctx)
	return m.state.ConversationID
}

// HandleTurn runs one full turn: record the user message, ask the transport
// for a reply, merge any extracted lead fields, record the reply and check
// for completion. Turns on one manager are serialized.
func (m *Manager) HandleTurn(ctx context.Context, text string) (TurnOutcome, error) {
	m.turnMu.Lock()
	defer m.turnMu.Unlock()

	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return TurnOutcome{}, ErrClosed
	}

	if !m.AppendUserMessage(ctx, text) {
		return TurnOutcome{}, ErrEmptyMessage
	}

	snap := m.Snapshot()
	var result TurnResult
	if m.transport != nil {
		result = m.transport.SendTurn(ctx, TurnRequest{
			ConversationID: snap.ConversationID,
			History:        snap.Messages,
			Lead:           snap.LeadInfo,
			Text:           strings.TrimSpace(text),
		})
	}
	if strings.TrimSpace(result.Reply) == "" {
		result = TurnResult{Reply: m.fallbackReply, Fallback: true}
	}

	outcome := TurnOutcome{Reply: result.Reply, Fallback: result.Fallback}
	if !result.Patch.IsEmpty() {
		outcome.LeadChanged = m.MergeLeadInfo(ctx, result.Patch)
	}
	m.AppendAssistantMessage(ctx, result.Reply)
	outcome.Finalized = m.FinalizeIfComplete(ctx, ReasonCompleted)
	outcome.State = m.Snapshot()
	return outcome, nil
}

// Snapshot returns a deep copy of the current state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// ConversationID returns the current conversation id.
func (m *Manager) ConversationID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ConversationID
}

// Phase reports the lifecycle stage.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Phase()
}

// SetOpen records whether the chat window is visible. Opening clears the
// pending-notification flag.
func (m *Manager) SetOpen(open bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = open
	if open {
		m.pending = false
	}
}

// PendingNotification reports whether a reply arrived while the window was closed.
func (m *Manager) PendingNotification() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// Wait blocks until in-flight summary dispatches finish.
func (m *Manager) Wait() {
	m.dispatch.Wait()
}

// Close stops the idle timer and rejects further turns. In-flight dispatches
// keep running; use Wait to drain them.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.stopIdleLocked()
}

func (m *Manager) armIdleLocked() {
	m.stopIdleLocked()
	if m.closed || m.state.ConversationSent || m.policy.IdleTimeout <= 0 {
		return
	}
	m.idleGen++
	gen := m.idleGen
	m.idle = time.AfterFunc(m.policy.IdleTimeout, func() {
		if m.finalize(context.Background(), ReasonIdle, gen) {
			m.logger.Info("conversation: closed after inactivity", "key", m.key)
		}
	})
}

func (m *Manager) stopIdleLocked() {
	if m.idle != nil {
		m.idle.Stop()
		m.idle = nil
	}
	m.idleGen++
}

func (m *Manager) persistLocked(ctx context.Context) {
	m.state.Timestamp = m.now().UTC()
	if err := m.store.Save(ctx, m.key, &m.state); err != nil {
		m.logger.Error("conversation: failed to persist state", "key", m.key, "conversation_id", m.state.ConversationID, "error", err)
	}
}

func (m *Manager) deleteLocked(ctx context.Context) {
	if err := m.store.Delete(ctx, m.key); err != nil {
		m.logger.Error("conversation: failed to clear state", "key", m.key, "error", err)
	}
}
