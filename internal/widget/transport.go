// Package widget holds the client side of the discovery chat: HTTP clients
// for the completion and conversation-complete endpoints.
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
	"github.com/wolfman30/discovery-widget/internal/leads"
	"github.com/wolfman30/discovery-widget/internal/protocol"
	"github.com/wolfman30/discovery-widget/pkg/logging"
)

// DefaultFallbackReply is shown when the completion endpoint cannot be reached.
const DefaultFallbackReply = "I'm having trouble connecting right now. Could you try again in a moment, or email us directly at info@aisync101.com?"

const maxResponseBytes = 1 << 20

// TransportConfig configures a TransportClient.
type TransportConfig struct {
	Endpoint      string
	Timeout       time.Duration
	FallbackReply string
	HTTPClient    *http.Client
}

// TransportClient posts turns to the completion endpoint.
type TransportClient struct {
	endpoint string
	timeout  time.Duration
	fallback string
	http     *http.Client
	logger   *logging.Logger
}

// NewTransportClient returns nil when no endpoint is configured.
func NewTransportClient(cfg TransportConfig, logger *logging.Logger) *TransportClient {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.FallbackReply == "" {
		cfg.FallbackReply = DefaultFallbackReply
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &TransportClient{
		endpoint: cfg.Endpoint,
		timeout:  cfg.Timeout,
		fallback: cfg.FallbackReply,
		http:     cfg.HTTPClient,
		logger:   logger,
	}
}

// SendTurn makes a single attempt. Any failure yields the fallback reply and
// no lead patch.
func (c *TransportClient) SendTurn(ctx context.Context, req conversation.TurnRequest) conversation.TurnResult {
	resp, err := c.post(ctx, req)
	if err != nil {
		c.logger.Warn("widget: completion request failed", "conversation_id", req.ConversationID, "error", err)
		return conversation.TurnResult{Reply: c.fallback, Fallback: true}
	}

	patch := leads.Info{}
	if resp.ExtractedInfo != nil {
		patch = *resp.ExtractedInfo
	}
	if patch.IsEmpty() {
		patch = leads.Extract(req.Text)
	}
	return conversation.TurnResult{Reply: resp.Response, Patch: patch}
}

func (c *TransportClient) post(ctx context.Context, req conversation.TurnRequest) (*protocol.ChatResponse, error) {
	body, err := json.Marshal(protocol.ChatRequest{
		ConversationID: req.ConversationID,
		Message:        req.Text,
		Messages:       conversation.ToWire(req.History),
		LeadInfo:       req.Lead,
	})
	if err != nil {
		return nil, fmt.Errorf("widget: marshal chat request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("widget: build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("widget: chat request: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("widget: read chat response: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, fmt.Errorf("widget: chat endpoint returned status %d", httpResp.StatusCode)
	}

	var out protocol.ChatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("widget: decode chat response: %w", err)
	}
	if strings.TrimSpace(out.Response) == "" {
		return nil, fmt.Errorf("widget: chat endpoint returned an empty reply")
	}
	return &out, nil
}

var _ conversation.Transport = (*TransportClient)(nil)
