package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wolfman30/discovery-widget/internal/llm"
)

// WidgetMetrics exposes counters/histograms for the discovery chat flows.
type WidgetMetrics struct {
	chatTurns      *prometheus.CounterVec
	chatLatency    *prometheus.HistogramVec
	llmLatency     *prometheus.HistogramVec
	llmTokens      *prometheus.CounterVec
	summariesTotal *prometheus.CounterVec
	emailsTotal    *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

func NewWidgetMetrics(reg prometheus.Registerer) *WidgetMetrics {
	m := &WidgetMetrics{
		chatTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "discovery",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total chat turns by outcome",
		}, []string{"outcome"}),
		chatLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "discovery",
			Subsystem: "chat",
			Name:      "turn_latency_seconds",
			Help:      "Latency of chat turn handling",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "discovery",
			Subsystem: "llm",
			Name:      "latency_seconds",
			Help:      "Latency of completion provider calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"provider", "status"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "discovery",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Tokens consumed by completion providers",
		}, []string{"provider", "kind"}),
		summariesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "discovery",
			Subsystem: "tracker",
			Name:      "summaries_total",
			Help:      "Conversation summaries by end reason and status",
		}, []string{"reason", "status"}),
		emailsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "discovery",
			Subsystem: "tracker",
			Name:      "emails_total",
			Help:      "Summary and recap emails by kind and status",
		}, []string{"kind", "status"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "discovery",
			Subsystem: "webchat",
			Name:      "active_sessions",
			Help:      "Open web chat WebSocket connections",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.chatTurns, m.chatLatency, m.llmLatency, m.llmTokens, m.summariesTotal, m.emailsTotal, m.activeSessions)
	return m
}

func (m *WidgetMetrics) ObserveChatTurn(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.chatTurns.WithLabelValues(outcome).Inc()
	m.chatLatency.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveLLM implements llm.Observer.
func (m *WidgetMetrics) ObserveLLM(provider string, d time.Duration, usage llm.TokenUsage, err error) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(provider, statusLabel(err)).Observe(d.Seconds())
	if usage.InputTokens > 0 {
		m.llmTokens.WithLabelValues(provider, "input").Add(float64(usage.InputTokens))
	}
	if usage.OutputTokens > 0 {
		m.llmTokens.WithLabelValues(provider, "output").Add(float64(usage.OutputTokens))
	}
}

func (m *WidgetMetrics) ObserveSummary(reason string, err error) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.summariesTotal.WithLabelValues(reason, statusLabel(err)).Inc()
}

func (m *WidgetMetrics) ObserveEmail(kind string, err error) {
	if m == nil {
		return
	}
	m.emailsTotal.WithLabelValues(kind, statusLabel(err)).Inc()
}

func (m *WidgetMetrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *WidgetMetrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

var _ llm.Observer = (*WidgetMetrics)(nil)
