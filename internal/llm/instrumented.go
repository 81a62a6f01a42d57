package llm

import (
	"context"
	"time"
)

// Observer records provider latency and outcome.
type Observer interface {
	ObserveLLM(provider string, d time.Duration, usage TokenUsage, err error)
}

type instrumentedClient struct {
	next     Client
	provider string
	observer Observer
}

// Instrument reports every call on next to observer. A nil observer returns next.
func Instrument(next Client, provider string, observer Observer) Client {
	if observer == nil {
		return next
	}
	return &instrumentedClient{next: next, provider: provider, observer: observer}
}

func (c *instrumentedClient) Complete(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp, err := c.next.Complete(ctx, req)
	c.observer.ObserveLLM(c.provider, time.Since(start), resp.Usage, err)
	return resp, err
}
