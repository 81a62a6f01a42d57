package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/discovery-widget/pkg/logging"
)

type scriptedClient struct {
	resp  Response
	err   error
	calls int
	last  Request
}

func (s *scriptedClient) Complete(_ context.Context, req Request) (Response, error) {
	s.calls++
	s.last = req
	return s.resp, s.err
}

func TestFallbackClient(t *testing.T) {
	req := Request{Model: "gpt-4o", Messages: []Message{{Role: RoleUser, Content: "hi"}}}

	t.Run("primary succeeds", func(t *testing.T) {
		primary := &scriptedClient{resp: Response{Text: "a"}}
		fallback := &scriptedClient{}
		resp, err := NewFallbackClient(primary, fallback, logging.New("error")).Complete(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "a", resp.Text)
		assert.Zero(t, fallback.calls)
	})

	t.Run("fallback used", func(t *testing.T) {
		primary := &scriptedClient{err: errors.New("down")}
		fallback := &scriptedClient{resp: Response{Text: "b"}}
		resp, err := NewFallbackClient(primary, fallback, nil).Complete(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "b", resp.Text)
		assert.Empty(t, fallback.last.Model)
	})

	t.Run("both fail", func(t *testing.T) {
		primary := &scriptedClient{err: errors.New("down")}
		fallback := &scriptedClient{err: errors.New("also down")}
		_, err := NewFallbackClient(primary, fallback, nil).Complete(context.Background(), req)
		assert.EqualError(t, err, "also down")
	})

	t.Run("no fallback", func(t *testing.T) {
		primary := &scriptedClient{err: errors.New("down")}
		_, err := NewFallbackClient(primary, nil, nil).Complete(context.Background(), req)
		assert.EqualError(t, err, "down")
	})
}

type recordingObserver struct {
	provider string
	err      error
	usage    TokenUsage
}

func (o *recordingObserver) ObserveLLM(provider string, _ time.Duration, usage TokenUsage, err error) {
	o.provider, o.usage, o.err = provider, usage, err
}

func TestInstrument(t *testing.T) {
	obs := &recordingObserver{}
	inner := &scriptedClient{resp: Response{Text: "ok", Usage: TokenUsage{TotalTokens: 9}}}

	_, err := Instrument(inner, ProviderOpenAI, obs).Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, obs.provider)
	assert.Equal(t, int32(9), obs.usage.TotalTokens)

	assert.Same(t, inner, Instrument(inner, ProviderOpenAI, nil))
}

func TestBuild(t *testing.T) {
	ctx := context.Background()

	client, err := Build(ctx, Options{Provider: ProviderOpenAI, OpenAIAPIKey: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, client)

	_, err = Build(ctx, Options{Provider: "cohere"}, nil)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = Build(ctx, Options{Provider: ProviderBedrock, BedrockModelID: "m"}, nil)
	assert.Error(t, err)

	// An unusable fallback is skipped rather than failing startup.
	client, err = Build(ctx, Options{Provider: ProviderOpenAI, OpenAIAPIKey: "k", FallbackProvider: ProviderGemini}, logging.New("error"))
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, client)
}
