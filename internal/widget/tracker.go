package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/discovery-widget/internal/conversation"
	"github.com/wolfman30/discovery-widget/internal/protocol"
	"github.com/wolfman30/discovery-widget/pkg/logging"
)

// TrackerConfig configures a TrackerClient.
type TrackerConfig struct {
	Endpoint   string
	PageURL    string
	Source     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// TrackerClient posts finished conversations to the notification endpoint.
type TrackerClient struct {
	endpoint string
	pageURL  string
	source   string
	timeout  time.Duration
	http     *http.Client
	logger   *logging.Logger
}

// NewTrackerClient returns nil when no endpoint is configured.
func NewTrackerClient(cfg TrackerConfig, logger *logging.Logger) *TrackerClient {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Source == "" {
		cfg.Source = protocol.SourceWidget
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &TrackerClient{
		endpoint: cfg.Endpoint,
		pageURL:  cfg.PageURL,
		source:   cfg.Source,
		timeout:  cfg.Timeout,
		http:     cfg.HTTPClient,
		logger:   logger,
	}
}

// Notify sends the transcript once. Non-2xx responses are errors; the body
// is only inspected for logging.
func (c *TrackerClient) Notify(ctx context.Context, summary conversation.Summary) error {
	body, err := json.Marshal(summary.CompleteRequest(c.source, c.pageURL))
	if err != nil {
		return fmt.Errorf("widget: marshal summary: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("widget: build summary request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("widget: summary request: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("widget: tracker returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out protocol.CompleteResponse
	if err := json.Unmarshal(data, &out); err != nil {
		c.logger.Debug("widget: tracker response not JSON", "conversation_id", summary.ConversationID)
		return nil
	}
	c.logger.Debug("widget: summary accepted", "conversation_id", summary.ConversationID, "success", out.Success, "summary_id", out.SummaryID)
	return nil
}

var _ conversation.Notifier = (*TrackerClient)(nil)
