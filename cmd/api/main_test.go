package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/discovery-widget/internal/config"
	"github.com/wolfman30/discovery-widget/pkg/logging"
)

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	_, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	return port
}

func TestNewServerTimeouts(t *testing.T) {
	srv := newServer(&appconfig.Config{Port: "9090", LLMTimeout: 25 * time.Second}, http.NotFoundHandler())
	assert.Equal(t, ":9090", srv.Addr)
	assert.Equal(t, 40*time.Second, srv.WriteTimeout)
}

func TestRunServesHealthAndStops(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{
		Port:               freePort(t),
		Env:                "development",
		LLMProvider:        "openai",
		OpenAIAPIKey:       "test-key",
		EmailProvider:      "stub",
		AWSRegion:          "us-east-1",
		CORSAllowedOrigins: []string{"*"},
		RateLimitRPS:       5,
		RateLimitBurst:     5,
		LLMTimeout:         time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx, cfg, logging.New("error")) }()

	url := "http://127.0.0.1:" + cfg.Port + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNewLoggerFansOutToLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.log")
	logger, closeLog, err := newLogger(&appconfig.Config{LogLevel: "info", LogFormat: "json", LogFile: path})
	require.NoError(t, err)

	logger.Info("server listening", "addr", ":8080")
	closeLog()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"server listening"`)
	assert.Contains(t, string(data), `"addr":":8080"`)
}

func TestNewLoggerRejectsUnwritableLogFile(t *testing.T) {
	_, _, err := newLogger(&appconfig.Config{LogFile: filepath.Join(t.TempDir(), "missing", "api.log")})
	assert.Error(t, err)
}
